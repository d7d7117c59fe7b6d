package edfio

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// annotationLabel marks EDF+ annotation channels, which carry no samples.
const annotationLabel = "EDF Annotations"

// Offsets within the fixed part of an EDF header.
const (
	fixedHeaderSize   = 256
	signalHeaderSize  = 256
	recordsOffset     = 236
	durationOffset    = 244
	signalCountOffset = 252
	labelSize         = 16
	// bytes of per-signal fields before samples-per-record:
	// label, transducer, dimension, pmin, pmax, dmin, dmax, prefilter.
	sprFieldOffset = 16 + 80 + 8 + 8 + 8 + 8 + 8 + 80
	sprSize        = 8
)

// header holds the fields the loader needs from an EDF file.
type header struct {
	records          int
	recordDuration   float64
	labels           []string
	samplesPerRecord []int
}

func readHeader(r io.Reader) (header, error) {
	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return header{}, fmt.Errorf("read fixed header: %w", err)
	}

	var h header
	var err error
	if h.records, err = atoi(fixed[recordsOffset:durationOffset]); err != nil {
		return header{}, fmt.Errorf("number of data records: %w", err)
	}
	if h.recordDuration, err = strconv.ParseFloat(field(fixed[durationOffset:signalCountOffset]), 64); err != nil {
		return header{}, fmt.Errorf("data record duration: %w", err)
	}
	ns, err := atoi(fixed[signalCountOffset:fixedHeaderSize])
	if err != nil {
		return header{}, fmt.Errorf("signal count: %w", err)
	}
	if ns < 0 {
		return header{}, fmt.Errorf("signal count %d", ns)
	}

	signals := make([]byte, ns*signalHeaderSize)
	if _, err := io.ReadFull(r, signals); err != nil {
		return header{}, fmt.Errorf("read signal headers: %w", err)
	}
	h.labels = make([]string, ns)
	h.samplesPerRecord = make([]int, ns)
	for i := 0; i < ns; i++ {
		h.labels[i] = field(signals[i*labelSize : (i+1)*labelSize])
		off := ns*sprFieldOffset + i*sprSize
		if h.samplesPerRecord[i], err = atoi(signals[off : off+sprSize]); err != nil {
			return header{}, fmt.Errorf("samples per record of %q: %w", h.labels[i], err)
		}
	}
	return h, nil
}

func field(b []byte) string { return strings.TrimSpace(string(b)) }

func atoi(b []byte) (int, error) { return strconv.Atoi(field(b)) }
