package recording

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/OpenPSG/edf"

	"github.com/eegprep/eegprep/internal/errors"
)

const (
	edfFixedHeaderSize  = 256
	edfSignalHeaderSize = 256
	edfAnnotationsLabel = "EDF Annotations"

	talOnsetSeparator = 0x15
	talFieldSeparator = 0x14
)

// edfLayout is the part of the EDF header needed to locate signals and the
// annotation channel inside a data record.
type edfLayout struct {
	headerBytes int
	records     int
	duration    float64
	signals     []edfSignal
	recordBytes int
}

type edfSignal struct {
	label   string
	physDim string
	spr     int
	offset  int // byte offset inside a data record
}

func (s edfSignal) isAnnotation() bool {
	return s.label == edfAnnotationsLabel
}

// decodeEDF decodes an EDF or EDF+ file held in memory. Ordinary signals are
// decoded through the edf package; the EDF+ annotation signal is parsed as
// time-stamped annotation lists.
func decodeEDF(raw []byte) (*Recording, error) {
	layout, err := parseEDFLayout(raw)
	if err != nil {
		return nil, err
	}

	dataEnd := layout.headerBytes + layout.records*layout.recordBytes
	if len(raw) < dataEnd {
		return nil, fmt.Errorf("data block truncated: need %d bytes, file has %d", dataEnd, len(raw))
	}

	reader, err := edf.Open(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("error opening EDF: %w", err)
	}

	rec := &Recording{}
	var annotationSignals []int
	for i, sig := range layout.signals {
		if sig.isAnnotation() {
			annotationSignals = append(annotationSignals, i)
			continue
		}

		fs := float64(sig.spr) / layout.duration
		if rec.SampleRate == 0 {
			rec.SampleRate = fs
		} else if math.Abs(rec.SampleRate-fs) > 1e-9 {
			return nil, fmt.Errorf("signal %q sampled at %g Hz, expected %g Hz: mixed sampling rates are not supported",
				sig.label, fs, rec.SampleRate)
		}

		samples, err := readEDFSignal(reader, i, layout.records*sig.spr)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", sig.label, err)
		}
		if scale := unitScale(sig.physDim); scale != 1 {
			for j := range samples {
				samples[j] *= scale
			}
		}

		rec.Channels = append(rec.Channels, Channel{Name: sig.label, Unit: sig.physDim})
		rec.Data = append(rec.Data, samples)
	}

	if len(rec.Channels) == 0 {
		return nil, errors.NewStd("EDF file contains no data signals")
	}

	for _, idx := range annotationSignals {
		sig := layout.signals[idx]
		for r := range layout.records {
			start := layout.headerBytes + r*layout.recordBytes + sig.offset
			anns, err := parseTALs(raw[start:start+2*sig.spr], rec.SampleRate)
			if err != nil {
				return nil, fmt.Errorf("data record %d: %w", r, err)
			}
			rec.Annotations = append(rec.Annotations, anns...)
		}
	}

	return rec, nil
}

func readEDFSignal(reader *edf.Reader, index, n int) ([]float64, error) {
	sr, err := reader.Signal(index)
	if err != nil {
		return nil, err
	}
	samples := make([]float64, n)
	read, err := sr.Read(samples)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if read != n {
		return nil, fmt.Errorf("read %d of %d samples", read, n)
	}
	return samples, nil
}

func parseEDFLayout(raw []byte) (*edfLayout, error) {
	if len(raw) < edfFixedHeaderSize {
		return nil, fmt.Errorf("file too short for an EDF header: %d bytes", len(raw))
	}

	field := func(b []byte) string { return strings.TrimSpace(string(b)) }
	atoi := func(name string, b []byte) (int, error) {
		v, err := strconv.Atoi(field(b))
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, field(b))
		}
		return v, nil
	}

	layout := &edfLayout{}
	var err error
	if layout.headerBytes, err = atoi("header size", raw[184:192]); err != nil {
		return nil, err
	}
	if layout.records, err = atoi("number of data records", raw[236:244]); err != nil {
		return nil, err
	}
	if layout.duration, err = strconv.ParseFloat(field(raw[244:252]), 64); err != nil || layout.duration <= 0 {
		return nil, fmt.Errorf("invalid data record duration %q", field(raw[244:252]))
	}
	ns, err := atoi("number of signals", raw[252:256])
	if err != nil {
		return nil, err
	}

	switch {
	case ns <= 0:
		return nil, fmt.Errorf("EDF header declares %d signals", ns)
	case layout.records < 0:
		return nil, fmt.Errorf("EDF header declares an unknown number of data records")
	case layout.headerBytes != edfFixedHeaderSize+ns*edfSignalHeaderSize:
		return nil, fmt.Errorf("EDF header size %d does not match %d signals", layout.headerBytes, ns)
	case len(raw) < layout.headerBytes:
		return nil, fmt.Errorf("EDF header truncated: need %d bytes, file has %d", layout.headerBytes, len(raw))
	}

	// Column offsets inside the signal header block.
	const (
		labelCol   = 0
		physDimCol = 16 + 80
		sprCol     = 16 + 80 + 8 + 8 + 8 + 8 + 8 + 80
	)
	base := edfFixedHeaderSize
	layout.signals = make([]edfSignal, ns)
	for i := range layout.signals {
		sig := &layout.signals[i]
		sig.label = field(raw[base+labelCol*ns+i*16 : base+labelCol*ns+(i+1)*16])
		sig.physDim = field(raw[base+physDimCol*ns+i*8 : base+physDimCol*ns+(i+1)*8])
		if sig.spr, err = atoi("samples per record", raw[base+sprCol*ns+i*8:base+sprCol*ns+(i+1)*8]); err != nil {
			return nil, fmt.Errorf("signal %q: %w", sig.label, err)
		}
		if sig.spr <= 0 {
			return nil, fmt.Errorf("signal %q has %d samples per record", sig.label, sig.spr)
		}
		sig.offset = layout.recordBytes
		layout.recordBytes += 2 * sig.spr
	}

	if limit := (len(raw) - layout.headerBytes) / layout.recordBytes; layout.records > limit {
		return nil, fmt.Errorf("EDF header declares %d data records, file holds at most %d", layout.records, limit)
	}

	return layout, nil
}

// parseTALs decodes the time-stamped annotation lists of one data record:
//
//	+onset[\x15duration]\x14text\x14[text\x14...]\x00
//
// The time-keeping TAL that opens each record carries no text and produces
// no annotation.
func parseTALs(b []byte, fs float64) ([]Annotation, error) {
	var out []Annotation
	for _, tal := range bytes.Split(b, []byte{0}) {
		if len(tal) == 0 {
			continue
		}
		fields := bytes.Split(tal, []byte{talFieldSeparator})
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed annotation list %q", tal)
		}

		timing := fields[0]
		var duration float64
		if i := bytes.IndexByte(timing, talOnsetSeparator); i >= 0 {
			d, err := strconv.ParseFloat(string(timing[i+1:]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid annotation duration %q", timing[i+1:])
			}
			duration = d
			timing = timing[:i]
		}
		onset, err := strconv.ParseFloat(string(timing), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid annotation onset %q", timing)
		}

		for _, text := range fields[1:] {
			code := strings.TrimSpace(string(text))
			if code == "" {
				continue
			}
			out = append(out, Annotation{
				Sample:   int(math.Round(onset * fs)),
				Code:     code,
				Duration: int(math.Round(duration * fs)),
			})
		}
	}
	return out, nil
}
