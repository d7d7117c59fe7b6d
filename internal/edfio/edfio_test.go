package edfio

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-eeg/internal/signal"
)

var montage = []string{"FP1-F7", "F7-T7", "T7-P7"}

func sampleRecording(t *testing.T, samples int, rate float64) *signal.Matrix {
	t.Helper()
	cols := make([][]float64, len(montage))
	for j := range cols {
		cols[j] = make([]float64, samples)
		for i := range cols[j] {
			cols[j][i] = 80*math.Sin(2*math.Pi*float64(j+3)*float64(i)/rate) + float64(j)*10
		}
	}
	sig, err := signal.FromColumns(cols, montage, rate)
	require.NoError(t, err)
	return sig
}

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "rec.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// quantum is the worst-case error of a 16-bit round trip over [lo, hi].
func quantum(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return 2 * (hi - lo + 0.02) / 65535
}

func TestExportThenLoad(t *testing.T) {
	sig := sampleRecording(t, 1000, 256)
	path := filepath.Join(t.TempDir(), "chb01_03-ictal.edf")
	require.NoError(t, ExportFile(context.Background(), path, sig, Meta{PatientID: "chb01", RecordingID: "ictal"}))

	got, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, montage, got.Labels())
	assert.Equal(t, 256.0, got.SampleRate())
	assert.Equal(t, 1024, got.Samples(), "trailing record is padded to a full second")
	for j := range montage {
		want := sig.Column(j)
		have := got.Column(j)
		tol := quantum(want)
		for i := range want {
			require.InDelta(t, want[i], have[i], tol, "electrode %d sample %d", j, i)
		}
		for i := len(want); i < len(have); i++ {
			assert.InDelta(t, want[len(want)-1], have[i], tol, "padding repeats the last sample")
		}
	}
}

func TestLoadWithChannels(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, Export(f, sampleRecording(t, 512, 128), Meta{}))

	_, err := f.Seek(0, 0)
	require.NoError(t, err)
	got, err := Load(f, WithChannels("T7-P7", "FP1-F7"))
	require.NoError(t, err)
	assert.Equal(t, []string{"T7-P7", "FP1-F7"}, got.Labels())
	assert.Equal(t, 512, got.Samples())

	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	_, err = Load(f, WithChannels("CZ-PZ"))
	assert.ErrorIs(t, err, signal.ErrShapeMismatch)
}

func writeRaw(t *testing.T, f *os.File, signals []edf.Signal, records [][][]float64) {
	t.Helper()
	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		SignalCount:        len(signals),
		Signals:            signals,
	})
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, w.WriteRecord(rec))
	}
	require.NoError(t, w.Close())
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
}

func eegSignal(label string, spr int) edf.Signal {
	return edf.Signal{
		Label: label, PhysicalMin: -100, PhysicalMax: 100,
		DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: spr,
	}
}

func TestLoadSkipsAnnotations(t *testing.T) {
	f := tempFile(t)
	writeRaw(t, f,
		[]edf.Signal{eegSignal("C3-P3", 4), eegSignal(annotationLabel, 2), eegSignal("C4-P4", 4)},
		[][][]float64{{{1, 2, 3, 4}, {0, 0}, {-1, -2, -3, -4}}},
	)

	got, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"C3-P3", "C4-P4"}, got.Labels())
	assert.Equal(t, 4.0, got.SampleRate())
	assert.InDelta(t, 3, got.At(2, 0), 0.01)
	assert.InDelta(t, -4, got.At(3, 1), 0.01)
}

func TestLoadRejectsMixedRates(t *testing.T) {
	f := tempFile(t)
	writeRaw(t, f,
		[]edf.Signal{eegSignal("C3-P3", 4), eegSignal("ECG", 2)},
		[][][]float64{{{1, 2, 3, 4}, {0, 0}}},
	)
	_, err := Load(f)
	assert.ErrorIs(t, err, signal.ErrShapeMismatch)
}

func TestLoadRejectsGarbage(t *testing.T) {
	f := tempFile(t)
	_, err := f.WriteString("not an edf file")
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	_, err = Load(f)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.edf"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileLoaderHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.edf")
	require.NoError(t, ExportFile(context.Background(), path, sampleRecording(t, 256, 256), Meta{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileLoader().LoadRecording(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportRejects(t *testing.T) {
	f := tempFile(t)

	err := Export(f, nil, Meta{})
	assert.ErrorIs(t, err, signal.ErrEmptySignal)

	err = Export(f, sampleRecording(t, 100, 173.61), Meta{})
	assert.ErrorIs(t, err, signal.ErrShapeMismatch)

	labels := make([]string, 20)
	cols := make([][]float64, 20)
	for j := range labels {
		labels[j] = string(rune('A' + j))
		cols[j] = []float64{1, 2, 3, 4}
	}
	wide, err := signal.FromColumns(cols, labels, 2048)
	require.NoError(t, err)
	err = Export(f, wide, Meta{})
	assert.ErrorIs(t, err, signal.ErrShapeMismatch, "20 x 2048 samples overflow one record")
}

func TestExportFlatChannel(t *testing.T) {
	sig, err := signal.FromColumns([][]float64{{5, 5, 5, 5}}, []string{"REF"}, 4)
	require.NoError(t, err)

	f := tempFile(t)
	require.NoError(t, Export(f, sig, Meta{}))
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	got, err := Load(f)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 5, got.At(i, 0), 1e-3)
	}
}

func TestPhysicalLimit(t *testing.T) {
	assert.Equal(t, -12.35, physicalLimit(-12.341, false))
	assert.Equal(t, 12.35, physicalLimit(12.341, true))
	assert.Equal(t, -123457.0, physicalLimit(-123456.7, false))
	assert.Equal(t, 99999.99, physicalLimit(99999.985, true))
}
