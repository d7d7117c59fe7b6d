package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-eeg/internal/models"
)

// ErrMalformedRequest marks request documents that cannot be decoded.
var ErrMalformedRequest = errors.New("malformed request")

var (
	analysisKeys = []string{"recording", "start_time", "end_time", "sampling_freq", "filter", "correlation_mode", "clamp", "export"}
	filterKeys   = []string{"low_freq", "high_freq", "order"}
	describeKeys = []string{"recording"}
)

// FromStructAnalysisRequest maps an AnalyzeRecording document into a domain request.
func FromStructAnalysisRequest(in *structpb.Struct) (models.AnalysisRequest, error) {
	fields, err := fieldsOf(in, analysisKeys)
	if err != nil {
		return models.AnalysisRequest{}, err
	}

	var req models.AnalysisRequest
	if req.Recording, err = requiredString(fields, "recording"); err != nil {
		return models.AnalysisRequest{}, err
	}
	if req.StartTime, err = requiredNumber(fields, "start_time"); err != nil {
		return models.AnalysisRequest{}, err
	}
	if req.EndTime, err = requiredNumber(fields, "end_time"); err != nil {
		return models.AnalysisRequest{}, err
	}
	if req.SamplingFreq, _, err = optionalNumber(fields, "sampling_freq"); err != nil {
		return models.AnalysisRequest{}, err
	}
	if req.SamplingFreq < 0 {
		return models.AnalysisRequest{}, malformed("sampling_freq %g must not be negative", req.SamplingFreq)
	}
	if req.CorrelationMode, err = optionalString(fields, "correlation_mode"); err != nil {
		return models.AnalysisRequest{}, err
	}
	if req.Clamp, err = optionalBool(fields, "clamp"); err != nil {
		return models.AnalysisRequest{}, err
	}
	if req.Export, err = optionalBool(fields, "export"); err != nil {
		return models.AnalysisRequest{}, err
	}

	if v, ok := fields["filter"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			sv := v.GetStructValue()
			if sv == nil {
				return models.AnalysisRequest{}, malformed("filter must be an object")
			}
			ff, err := fieldsOf(sv, filterKeys)
			if err != nil {
				return models.AnalysisRequest{}, err
			}
			var f models.FilterRequest
			if f.LowFreq, err = requiredNumber(ff, "low_freq"); err != nil {
				return models.AnalysisRequest{}, err
			}
			if f.HighFreq, err = requiredNumber(ff, "high_freq"); err != nil {
				return models.AnalysisRequest{}, err
			}
			order, err := requiredNumber(ff, "order")
			if err != nil {
				return models.AnalysisRequest{}, err
			}
			if order != math.Trunc(order) || order > math.MaxInt32 {
				return models.AnalysisRequest{}, malformed("filter.order %g must be an integer", order)
			}
			f.Order = int(order)
			req.Filter = &f
		}
	}
	return req, nil
}

// FromStructDescribeRequest extracts the recording path of a DescribeRecording document.
func FromStructDescribeRequest(in *structpb.Struct) (string, error) {
	fields, err := fieldsOf(in, describeKeys)
	if err != nil {
		return "", err
	}
	return requiredString(fields, "recording")
}

// ToStructAnalysisResult converts a result into its wire document.
func ToStructAnalysisResult(res models.AnalysisResult) (*structpb.Struct, error) {
	return toStruct(res)
}

// ToStructRecordingSummary converts a summary into its wire document.
func ToStructRecordingSummary(sum models.RecordingSummary) (*structpb.Struct, error) {
	return toStruct(sum)
}

// FromStructAnalysisResult decodes a result document, for clients.
func FromStructAnalysisResult(in *structpb.Struct) (models.AnalysisResult, error) {
	var out models.AnalysisResult
	err := fromStruct(in, &out)
	return out, err
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(raw, dst)
}

func fieldsOf(in *structpb.Struct, allowed []string) (map[string]*structpb.Value, error) {
	if in == nil {
		return nil, malformed("request is nil")
	}
	var unknown []string
	for key := range in.GetFields() {
		if !contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, malformed("unknown fields %s", strings.Join(unknown, ", "))
	}
	return in.GetFields(), nil
}

func requiredString(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", malformed("%s is required", key)
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString || strings.TrimSpace(s.StringValue) == "" {
		return "", malformed("%s must be a non-empty string", key)
	}
	return s.StringValue, nil
}

func optionalString(fields map[string]*structpb.Value, key string) (string, error) {
	if _, ok := fields[key]; !ok {
		return "", nil
	}
	s, isString := fields[key].GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", malformed("%s must be a string", key)
	}
	return s.StringValue, nil
}

func requiredNumber(fields map[string]*structpb.Value, key string) (float64, error) {
	v, ok, err := optionalNumber(fields, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, malformed("%s is required", key)
	}
	return v, nil
}

func optionalNumber(fields map[string]*structpb.Value, key string) (float64, bool, error) {
	v, ok := fields[key]
	if !ok {
		return 0, false, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, false, malformed("%s must be a number", key)
	}
	if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, false, malformed("%s must be finite", key)
	}
	return n.NumberValue, true, nil
}

func optionalBool(fields map[string]*structpb.Value, key string) (bool, error) {
	v, ok := fields[key]
	if !ok {
		return false, nil
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, malformed("%s must be a boolean", key)
	}
	return b.BoolValue, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, args...))
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
