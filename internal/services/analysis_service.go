package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-eeg/internal/api"
	"github.com/miradorstack/mirador-eeg/internal/cache"
	"github.com/miradorstack/mirador-eeg/internal/engine"
	"github.com/miradorstack/mirador-eeg/internal/metrics"
	"github.com/miradorstack/mirador-eeg/internal/models"
	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Analyzer runs phase analyses; engine.Pipeline in production.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
	Describe(ctx context.Context, recording string) (models.RecordingSummary, error)
}

// AnalysisService implements the gRPC PhaseAnalysis service.
type AnalysisService struct {
	logger    *slog.Logger
	analyzer  Analyzer
	cache     cache.Provider
	resultTTL time.Duration
	timeout   time.Duration
	latencies *utils.LatencyTracker
}

var _ api.PhaseAnalysisServer = (*AnalysisService)(nil)

// NewAnalysisService constructs the service facade. A nil cache disables result caching.
func NewAnalysisService(logger *slog.Logger, analyzer Analyzer, cacheProvider cache.Provider, resultTTL, timeout time.Duration) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &AnalysisService{
		logger:    logger,
		analyzer:  analyzer,
		cache:     cacheProvider,
		resultTTL: resultTTL,
		timeout:   timeout,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// AnalyzeRecording decodes the request document, runs the analysis and encodes the result.
func (s *AnalysisService) AnalyzeRecording(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := api.FromStructAnalysisRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Debug("AnalyzeRecording called",
		slog.String("recording", req.Recording),
		slog.Float64("start_time", req.StartTime),
		slog.Float64("end_time", req.EndTime))

	result, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, StatusError(err)
	}
	out, err := api.ToStructAnalysisResult(result)
	if err != nil {
		s.logger.Error("encode analysis result", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode result")
	}
	return out, nil
}

// DescribeRecording returns channel statistics for a whole recording.
func (s *AnalysisService) DescribeRecording(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	recording, err := api.FromStructDescribeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if s.analyzer == nil {
		return nil, status.Error(codes.FailedPrecondition, "analyzer not configured")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	summary, err := s.analyzer.Describe(ctx, recording)
	if err != nil {
		s.logger.Warn("describe recording failed", slog.String("recording", recording), slog.Any("error", err))
		return nil, StatusError(err)
	}
	out, err := api.ToStructRecordingSummary(summary)
	if err != nil {
		s.logger.Error("encode recording summary", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode summary")
	}
	return out, nil
}

// Analyze runs one analysis through the result cache. Requests that export
// files always run.
func (s *AnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if s.analyzer == nil {
		return models.AnalysisResult{}, errors.New("analyzer not configured")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := req.CacheKey()
	cacheable := !req.Export
	if cacheable {
		var cached models.AnalysisResult
		switch err := cache.GetJSON(ctx, s.cache, key, &cached); {
		case err == nil:
			metrics.ObserveCache(metrics.CacheHit)
			s.logger.Debug("analysis cache hit", slog.String("key", key))
			return cached, nil
		case errors.Is(err, cache.ErrCacheMiss):
			metrics.ObserveCache(metrics.CacheMiss)
		default:
			metrics.ObserveCache(metrics.CacheError)
			s.logger.Warn("analysis cache lookup failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(ctx, req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		metrics.ObserveFailure(err)
		s.logger.Warn("phase analysis failed",
			slog.String("recording", req.Recording),
			slog.String("kind", metrics.FailureKind(err)),
			slog.Any("error", err))
		return models.AnalysisResult{}, err
	}
	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}

	if cacheable {
		if err := cache.SetJSON(ctx, s.cache, key, result, s.resultTTL); err != nil {
			s.logger.Warn("analysis cache store failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return result, nil
}

// LatencyP95 returns the current p95 analysis latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *AnalysisService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// StatusError maps analysis errors onto gRPC status codes.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, api.ErrMalformedRequest),
		errors.Is(err, engine.ErrInvalidRequest),
		errors.Is(err, signal.ErrInvalidFilterSpec),
		errors.Is(err, signal.ErrInvalidWindow):
		code = codes.InvalidArgument
	case errors.Is(err, signal.ErrInsufficientMargin),
		errors.Is(err, signal.ErrEmptySignal),
		errors.Is(err, signal.ErrShapeMismatch):
		code = codes.FailedPrecondition
	case errors.Is(err, fs.ErrNotExist):
		code = codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		return status.Error(codes.Internal, fmt.Sprintf("analysis failed: %v", err))
	}
	return status.Error(code, err.Error())
}
