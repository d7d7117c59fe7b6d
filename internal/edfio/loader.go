package edfio

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/OpenPSG/edf"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

type options struct {
	channels []string
}

// Option customises Load.
type Option func(*options)

// WithChannels keeps only the named electrodes, in the given order.
func WithChannels(labels ...string) Option {
	return func(o *options) { o.channels = append([]string(nil), labels...) }
}

// Load reads every EEG signal of an EDF/EDF+ stream into a matrix with one
// column per electrode. Annotation channels are skipped. All remaining signals
// must share one samples-per-record value.
func Load(r io.ReadSeeker, opts ...Option) (*signal.Matrix, error) {
	return load(context.Background(), r, opts...)
}

// LoadFile opens path and reads it with Load.
func LoadFile(path string, opts ...Option) (*signal.Matrix, error) {
	return NewFileLoader(opts...).LoadRecording(context.Background(), path)
}

// FileLoader reads recordings from disk.
type FileLoader struct {
	opts []Option
}

// NewFileLoader returns a loader applying opts to every recording.
func NewFileLoader(opts ...Option) *FileLoader {
	return &FileLoader{opts: opts}
}

// LoadRecording reads the EDF file at path.
func (l *FileLoader) LoadRecording(ctx context.Context, path string) (*signal.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewAppError("edfio.LoadRecording", "open recording", err)
	}
	defer f.Close()
	return load(ctx, f, l.opts...)
}

func load(ctx context.Context, r io.ReadSeeker, opts ...Option) (*signal.Matrix, error) {
	const op = "edfio.Load"
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hdr, err := readHeader(r)
	if err != nil {
		return nil, utils.NewAppError(op, "parse header", err)
	}
	if hdr.records < 0 {
		return nil, utils.NewAppError(op, "record count is unknown, file was not finalised", signal.ErrShapeMismatch)
	}
	if !(hdr.recordDuration > 0) {
		return nil, utils.NewAppError(op, fmt.Sprintf("record duration %g must be positive", hdr.recordDuration), signal.ErrShapeMismatch)
	}

	var (
		indices []int
		labels  []string
		spr     int
	)
	for i, label := range hdr.labels {
		if label == annotationLabel {
			continue
		}
		if spr == 0 {
			spr = hdr.samplesPerRecord[i]
		} else if hdr.samplesPerRecord[i] != spr {
			return nil, utils.NewAppError(op, fmt.Sprintf("signal %q has %d samples per record, want %d", label, hdr.samplesPerRecord[i], spr), signal.ErrShapeMismatch)
		}
		indices = append(indices, i)
		labels = append(labels, label)
	}
	if len(indices) == 0 {
		return nil, utils.NewAppError(op, "no EEG signals", signal.ErrEmptySignal)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, utils.NewAppError(op, "rewind", err)
	}
	reader, err := edf.Open(r)
	if err != nil {
		return nil, utils.NewAppError(op, "open", err)
	}

	samples := hdr.records * spr
	rate := float64(spr) / hdr.recordDuration
	b := signal.NewBuilder(samples, labels, rate)
	for j, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, err := reader.Signal(idx)
		if err != nil {
			return nil, utils.NewAppError(op, fmt.Sprintf("signal %q", labels[j]), err)
		}
		values := make([]float64, samples)
		if n, err := sr.Read(values); err != nil && n < samples {
			return nil, utils.NewAppError(op, fmt.Sprintf("read %q: got %d of %d samples", labels[j], n, samples), err)
		}
		if err := b.SetColumn(j, values); err != nil {
			return nil, err
		}
	}
	sig, err := b.Build()
	if err != nil {
		return nil, err
	}
	if len(o.channels) > 0 {
		return sig.Select(o.channels...)
	}
	return sig, nil
}
