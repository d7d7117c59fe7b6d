package edfio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/OpenPSG/edf"
	"gonum.org/v1/gonum/floats"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

const (
	digitalMin = math.MinInt16
	digitalMax = math.MaxInt16
	// maxRecordBytes is the EDF recommended upper bound for one data record.
	maxRecordBytes = 61440
)

// Meta describes an exported recording.
type Meta struct {
	PatientID   string
	RecordingID string
	StartTime   time.Time
	// Dimension is the physical unit, "uV" when empty.
	Dimension string
}

// Export writes sig as EDF with one-second data records. The sampling rate must
// be a whole number of hertz. A trailing partial record is padded with the
// last sample of each electrode.
func Export(w io.WriteSeeker, sig *signal.Matrix, meta Meta) error {
	const op = "edfio.Export"
	if sig == nil || sig.Empty() {
		return utils.NewAppError(op, "nothing to export", signal.ErrEmptySignal)
	}
	rate := sig.SampleRate()
	spr := int(math.Round(rate))
	if spr < 1 || math.Abs(rate-float64(spr)) > 1e-9 {
		return utils.NewAppError(op, fmt.Sprintf("sampling rate %g Hz is not a whole number", rate), signal.ErrShapeMismatch)
	}
	if bytes := 2 * spr * sig.Electrodes(); bytes > maxRecordBytes {
		return utils.NewAppError(op, fmt.Sprintf("record of %d bytes exceeds %d", bytes, maxRecordBytes), signal.ErrShapeMismatch)
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          truncate(meta.PatientID, 80),
		RecordingID:        truncate(meta.RecordingID, 80),
		StartTime:          meta.StartTime,
		DataRecordDuration: time.Second,
		SignalCount:        sig.Electrodes(),
		Signals:            make([]edf.Signal, sig.Electrodes()),
	}
	if hdr.StartTime.IsZero() {
		hdr.StartTime = time.Unix(0, 0).UTC()
	}
	dim := meta.Dimension
	if dim == "" {
		dim = "uV"
	}

	columns := make([][]float64, sig.Electrodes())
	for j := range columns {
		columns[j] = sig.Column(j)
		lo, hi := floats.Min(columns[j]), floats.Max(columns[j])
		if lo == hi {
			lo, hi = lo-1, hi+1
		}
		hdr.Signals[j] = edf.Signal{
			Label:             truncate(sig.Label(j), labelSize),
			PhysicalDimension: truncate(dim, 8),
			PhysicalMin:       physicalLimit(lo, false),
			PhysicalMax:       physicalLimit(hi, true),
			DigitalMin:        digitalMin,
			DigitalMax:        digitalMax,
			SamplesPerRecord:  spr,
		}
	}

	ew, err := edf.Create(w, hdr)
	if err != nil {
		return utils.NewAppError(op, "write header", err)
	}
	n := sig.Samples()
	record := make([][]float64, len(columns))
	for start := 0; start < n; start += spr {
		for j, col := range columns {
			chunk := make([]float64, spr)
			copied := copy(chunk, col[start:min(start+spr, n)])
			for k := copied; k < spr; k++ {
				chunk[k] = col[n-1]
			}
			record[j] = chunk
		}
		if err := ew.WriteRecord(record); err != nil {
			return utils.NewAppError(op, fmt.Sprintf("write record at sample %d", start), err)
		}
	}
	if err := ew.Close(); err != nil {
		return utils.NewAppError(op, "finalise header", err)
	}
	return nil
}

// ExportFile writes sig to a new EDF file at path.
func ExportFile(ctx context.Context, path string, sig *signal.Matrix, meta Meta) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return utils.NewAppError("edfio.ExportFile", "create", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = utils.NewAppError("edfio.ExportFile", "close", cerr)
		}
	}()
	return Export(f, sig, meta)
}

// physicalLimit rounds v outward to a value the 8-character header field holds
// exactly.
func physicalLimit(v float64, up bool) float64 {
	round := math.Floor
	if up {
		round = math.Ceil
	}
	if r := round(v*100) / 100; len(fmt.Sprintf("%.2f", r)) <= 8 {
		return r
	}
	return round(v)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
