package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-eeg/internal/correlation"
	"github.com/miradorstack/mirador-eeg/internal/edfio"
	"github.com/miradorstack/mirador-eeg/internal/filter"
	"github.com/miradorstack/mirador-eeg/internal/models"
	"github.com/miradorstack/mirador-eeg/internal/segment"
	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/stats"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// ErrInvalidRequest marks requests rejected before any signal is read.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Loader reads a recording into a signal matrix.
type Loader interface {
	LoadRecording(ctx context.Context, path string) (*signal.Matrix, error)
}

// ExportFunc persists one phase window.
type ExportFunc func(ctx context.Context, path string, sig *signal.Matrix, meta edfio.Meta) error

// Pipeline runs load, filter, segment and correlate for one seizure.
type Pipeline struct {
	logger        *slog.Logger
	loader        Loader
	export        ExportFunc
	dataDir       string
	exportDir     string
	defaultFilter *models.FilterRequest
	defaultMode   correlation.Mode
	now           func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithDataDir sets the directory recordings are resolved against.
func WithDataDir(dir string) Option {
	return func(p *Pipeline) { p.dataDir = dir }
}

// WithExportDir enables per-phase EDF export into dir.
func WithExportDir(dir string) Option {
	return func(p *Pipeline) { p.exportDir = dir }
}

// WithDefaultFilter applies f to requests that carry no filter.
func WithDefaultFilter(f models.FilterRequest) Option {
	return func(p *Pipeline) { p.defaultFilter = &f }
}

// WithCorrelationMode sets the mode for requests that leave it empty.
func WithCorrelationMode(mode correlation.Mode) Option {
	return func(p *Pipeline) { p.defaultMode = mode }
}

// WithExporter replaces the EDF writer.
func WithExporter(fn ExportFunc) Option {
	return func(p *Pipeline) { p.export = fn }
}

// NewPipeline constructs a phase analysis pipeline.
func NewPipeline(logger *slog.Logger, loader Loader, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = edfio.NewFileLoader()
	}
	p := &Pipeline{
		logger:      logger,
		loader:      loader,
		export:      edfio.ExportFile,
		dataDir:     ".",
		defaultMode: correlation.ModeRaw,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze splits the recording around the seizure window and computes the
// correlation matrix and channel statistics of each phase.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	const op = "engine.Analyze"

	mode, err := p.mode(req.CorrelationMode)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if req.Export && p.exportDir == "" {
		return models.AnalysisResult{}, utils.NewAppError(op, "export requested but no export directory is configured", ErrInvalidRequest)
	}

	sig, err := p.load(ctx, req.Recording)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	if req.SamplingFreq > 0 && req.SamplingFreq != sig.SampleRate() && !sig.Empty() {
		p.logger.Debug("overriding sample rate",
			slog.Float64("recording_rate", sig.SampleRate()),
			slog.Float64("requested_rate", req.SamplingFreq))
		if sig, err = signal.NewMatrix(sig.Mat(), sig.Labels(), req.SamplingFreq); err != nil {
			return models.AnalysisResult{}, err
		}
	}
	rate := sig.SampleRate()

	var spec *filter.Spec
	if f := p.filterFor(req); f != nil {
		s := filter.Spec{LowFreq: f.LowFreq, HighFreq: f.HighFreq, SamplingFreq: rate, Order: f.Order}
		spec = &s
		if err := ctx.Err(); err != nil {
			return models.AnalysisResult{}, err
		}
		start := time.Now()
		if sig, err = filter.Apply(sig, s); err != nil {
			return models.AnalysisResult{}, err
		}
		p.logger.Debug("filtered recording", slog.String("filter", s.String()), slog.Duration("took", time.Since(start)))
	}

	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{}, err
	}
	window := segment.Window{StartTime: req.StartTime, EndTime: req.EndTime, SamplingFreq: rate}
	var splitOpts []segment.Option
	if req.Clamp {
		splitOpts = append(splitOpts, segment.WithClamp())
	}
	phases, err := segment.Split(sig, window, splitOpts...)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if phases.Truncated {
		p.logger.Warn("phases truncated at recording edge",
			slog.String("recording", req.Recording),
			slog.Int("preictal_samples", phases.Bounds.Preictal.Len()),
			slog.Int("postictal_samples", phases.Bounds.Postictal.Len()))
	}

	result := models.AnalysisResult{
		ID:         uuid.New(),
		Recording:  req.Recording,
		Labels:     sig.Labels(),
		SampleRate: rate,
		Window:     window,
		Filter:     spec,
		Truncated:  phases.Truncated,
		CreatedAt:  p.now().UTC(),
	}
	for _, seg := range phases.Segments() {
		if err := ctx.Err(); err != nil {
			return models.AnalysisResult{}, err
		}
		phase, err := p.analyzePhase(ctx, result.ID, seg, mode, req)
		if err != nil {
			return models.AnalysisResult{}, err
		}
		result.Phases = append(result.Phases, phase)
	}
	return result, nil
}

// analyzePhase reports a phase that clamping emptied as zero samples with no
// correlation, statistics or export.
func (p *Pipeline) analyzePhase(ctx context.Context, id uuid.UUID, seg segment.Segment, mode correlation.Mode, req models.AnalysisRequest) (models.PhaseResult, error) {
	if seg.Signal.Empty() {
		p.logger.Debug("phase empty after clamping", slog.String("phase", string(seg.Phase)))
		return models.PhaseResult{Phase: seg.Phase, StartIndex: seg.Range.Start, EndIndex: seg.Range.End}, nil
	}
	corr, err := correlation.Compute(seg.Signal, correlation.WithMode(mode))
	if err != nil {
		return models.PhaseResult{}, err
	}
	channels, err := stats.Describe(seg.Signal)
	if err != nil {
		return models.PhaseResult{}, err
	}

	out := models.PhaseResult{
		Phase:              seg.Phase,
		StartIndex:         seg.Range.Start,
		EndIndex:           seg.Range.End,
		Samples:            seg.Signal.Samples(),
		Correlation:        corr.Rows(),
		MeanAbsCorrelation: corr.MeanAbsOffDiagonal(),
		Channels:           channels,
	}
	if i, j, v := corr.Strongest(); i >= 0 {
		labels := corr.Labels()
		out.StrongestPair = &models.ElectrodePair{A: labels[i], B: labels[j], Value: v}
	}

	if req.Export {
		if err := os.MkdirAll(p.exportDir, 0o755); err != nil {
			return models.PhaseResult{}, utils.NewAppError("engine.Export", "create export directory", err)
		}
		path := filepath.Join(p.exportDir, fmt.Sprintf("%s-%s.edf", id, seg.Phase))
		meta := edfio.Meta{
			PatientID:   strings.TrimSuffix(filepath.Base(req.Recording), filepath.Ext(req.Recording)),
			RecordingID: fmt.Sprintf("%s %gs-%gs", seg.Phase, req.StartTime, req.EndTime),
		}
		if err := p.export(ctx, path, seg.Signal, meta); err != nil {
			return models.PhaseResult{}, err
		}
		out.ExportPath = path
	}

	p.logger.Debug("phase analysed",
		slog.String("phase", string(seg.Phase)),
		slog.Int("samples", out.Samples),
		slog.Float64("mean_abs_correlation", out.MeanAbsCorrelation))
	return out, nil
}

// Describe summarises a whole recording without segmentation.
func (p *Pipeline) Describe(ctx context.Context, recording string) (models.RecordingSummary, error) {
	sig, err := p.load(ctx, recording)
	if err != nil {
		return models.RecordingSummary{}, err
	}
	channels, err := stats.Describe(sig)
	if err != nil {
		return models.RecordingSummary{}, err
	}
	return models.RecordingSummary{
		Recording:  recording,
		Labels:     sig.Labels(),
		SampleRate: sig.SampleRate(),
		Samples:    sig.Samples(),
		Duration:   sig.Duration(),
		Channels:   channels,
	}, nil
}

func (p *Pipeline) load(ctx context.Context, recording string) (*signal.Matrix, error) {
	path, err := p.resolve(recording)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	sig, err := p.loader.LoadRecording(ctx, path)
	if err != nil {
		p.logger.Warn("recording load failed", slog.String("recording", recording), slog.Any("error", err))
		return nil, err
	}
	samples, electrodes := sig.Dims()
	p.logger.Debug("recording loaded",
		slog.String("recording", recording),
		slog.Int("samples", samples),
		slog.Int("electrodes", electrodes),
		slog.Float64("rate", sig.SampleRate()),
		slog.Duration("took", time.Since(start)))
	return sig, nil
}

// resolve maps a request path onto the data directory, refusing paths that
// leave it.
func (p *Pipeline) resolve(recording string) (string, error) {
	const op = "engine.resolve"
	if strings.TrimSpace(recording) == "" {
		return "", utils.NewAppError(op, "recording is required", ErrInvalidRequest)
	}
	clean := filepath.Clean(filepath.FromSlash(recording))
	if !filepath.IsLocal(clean) {
		return "", utils.NewAppError(op, fmt.Sprintf("recording %q escapes the data directory", recording), ErrInvalidRequest)
	}
	return filepath.Join(p.dataDir, clean), nil
}

func (p *Pipeline) mode(requested string) (correlation.Mode, error) {
	if requested == "" {
		return p.defaultMode, nil
	}
	mode, err := correlation.ParseMode(requested)
	if err != nil {
		return "", utils.NewAppError("engine.mode", err.Error(), ErrInvalidRequest)
	}
	return mode, nil
}

func (p *Pipeline) filterFor(req models.AnalysisRequest) *models.FilterRequest {
	if req.Filter != nil {
		return req.Filter
	}
	return p.defaultFilter
}
