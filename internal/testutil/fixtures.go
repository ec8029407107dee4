// Package testutil writes small synthetic GDF and EDF+ recordings for tests.
//
// Fixtures use an identity calibration (physical range equal to the int16
// digital range) so that a sample written as 12 with unit "uV" reads back as
// exactly 12e-6 volts.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/stretchr/testify/require"
)

const (
	digitalMin = math.MinInt16
	digitalMax = math.MaxInt16
)

// GDFEvent is one entry of a GDF event table. Sample is 0-based.
type GDFEvent struct {
	Sample   int
	Type     uint16
	Duration int
}

// GDFFixture describes a GDF file. Samples are padded with zeros up to a
// whole number of one-second data records.
type GDFFixture struct {
	Version    int // 1 or 2, default 2
	SampleRate int
	Labels     []string
	Unit       string
	Data       [][]int16 // channels x samples
	Events     []GDFEvent
	Durations  bool // write event table mode 3
	NoEvents   bool // omit the event table entirely
}

func (f GDFFixture) records() int {
	if len(f.Data) == 0 || f.SampleRate == 0 {
		return 0
	}
	return (len(f.Data[0]) + f.SampleRate - 1) / f.SampleRate
}

// WriteGDF writes f to path, creating parent directories.
func WriteGDF(tb testing.TB, path string, f GDFFixture) {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tb, os.WriteFile(path, EncodeGDF(f), 0o644))
}

// EncodeGDF returns the bytes of a GDF file described by f.
func EncodeGDF(f GDFFixture) []byte {
	if f.Version == 0 {
		f.Version = 2
	}
	ns := len(f.Labels)
	le := binary.LittleEndian
	hdr := make([]byte, 256*(1+ns))

	if f.Version == 1 {
		copy(hdr[0:8], "GDF 1.25")
		le.PutUint64(hdr[184:192], uint64(len(hdr)))
		le.PutUint32(hdr[252:256], uint32(ns))
	} else {
		copy(hdr[0:8], "GDF 2.20")
		le.PutUint16(hdr[184:186], uint16(1+ns))
		le.PutUint16(hdr[252:254], uint16(ns))
	}
	le.PutUint64(hdr[236:244], uint64(f.records()))
	le.PutUint32(hdr[244:248], 1)
	le.PutUint32(hdr[248:252], 1)

	off := 256
	column := func(size int, put func(b []byte, i int)) {
		for i := range ns {
			put(hdr[off+i*size:off+(i+1)*size], i)
		}
		off += ns * size
	}
	putF64 := func(v float64) func([]byte, int) {
		return func(b []byte, _ int) { le.PutUint64(b, math.Float64bits(v)) }
	}

	column(16, func(b []byte, i int) { copy(b, f.Labels[i]) })
	column(80, func([]byte, int) {})
	if f.Version == 1 {
		column(8, func(b []byte, _ int) { copy(b, f.Unit) })
		column(8, putF64(digitalMin))
		column(8, putF64(digitalMax))
		dmin, dmax := int64(digitalMin), int64(digitalMax)
		column(8, func(b []byte, _ int) { le.PutUint64(b, uint64(dmin)) })
		column(8, func(b []byte, _ int) { le.PutUint64(b, uint64(dmax)) })
		column(80, func([]byte, int) {})
	} else {
		// leave the text empty so the dimension code is used
		column(6, func([]byte, int) {})
		column(2, func(b []byte, _ int) { le.PutUint16(b, gdfUnitCode(f.Unit)) })
		column(8, putF64(digitalMin))
		column(8, putF64(digitalMax))
		column(8, putF64(digitalMin))
		column(8, putF64(digitalMax))
		column(68, func([]byte, int) {})
		column(12, func([]byte, int) {})
	}
	column(4, func(b []byte, _ int) { le.PutUint32(b, uint32(f.SampleRate)) })
	column(4, func(b []byte, _ int) { le.PutUint32(b, 3) }) // int16

	var buf bytes.Buffer
	buf.Write(hdr)

	sample := make([]byte, 2)
	for r := range f.records() {
		for ch := range ns {
			for s := range f.SampleRate {
				idx := r*f.SampleRate + s
				var v int16
				if idx < len(f.Data[ch]) {
					v = f.Data[ch][idx]
				}
				le.PutUint16(sample, uint16(v))
				buf.Write(sample)
			}
		}
	}

	if !f.NoEvents {
		buf.Write(encodeGDFEvents(f))
	}
	return buf.Bytes()
}

func encodeGDFEvents(f GDFFixture) []byte {
	le := binary.LittleEndian
	n := len(f.Events)
	head := make([]byte, 8)
	head[0] = 1
	if f.Durations {
		head[0] = 3
	}
	if f.Version == 1 {
		rate := uint32(f.SampleRate)
		head[1], head[2], head[3] = byte(rate), byte(rate>>8), byte(rate>>16)
		le.PutUint32(head[4:8], uint32(n))
	} else {
		head[1], head[2], head[3] = byte(n), byte(n>>8), byte(n>>16)
		le.PutUint32(head[4:8], math.Float32bits(float32(f.SampleRate)))
	}

	var buf bytes.Buffer
	buf.Write(head)
	for _, ev := range f.Events {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(ev.Sample+1))
	}
	for _, ev := range f.Events {
		_ = binary.Write(&buf, binary.LittleEndian, ev.Type)
	}
	if f.Durations {
		for range f.Events {
			_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
		}
		for _, ev := range f.Events {
			_ = binary.Write(&buf, binary.LittleEndian, uint32(ev.Duration))
		}
	}
	return buf.Bytes()
}

func gdfUnitCode(unit string) uint16 {
	switch unit {
	case "V":
		return 4256
	case "mV":
		return 4274
	case "uV":
		return 4275
	case "nV":
		return 4276
	default:
		return 0
	}
}

// EDFAnnotation is one EDF+ annotation in seconds.
type EDFAnnotation struct {
	Onset    float64
	Duration float64
	Text     string
}

// EDFFixture describes an EDF+ file with one-second data records. Data
// values must be integers within the int16 range.
type EDFFixture struct {
	SampleRate  int
	Labels      []string
	Unit        string
	Data        [][]float64 // channels x samples
	Annotations []EDFAnnotation
}

// WriteEDF writes f to path through the edf package writer. All annotations
// are stored in the first data record.
func WriteEDF(tb testing.TB, path string, f EDFFixture) {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))

	records := 0
	if len(f.Data) > 0 {
		records = (len(f.Data[0]) + f.SampleRate - 1) / f.SampleRate
	}

	first := talBytes(f.Annotations)
	other := talBytes(nil)
	annSamples := (len(first) + 1) / 2

	signals := make([]edf.Signal, 0, len(f.Labels)+1)
	for _, label := range f.Labels {
		signals = append(signals, identitySignal(label, f.Unit, f.SampleRate))
	}
	signals = append(signals, identitySignal("EDF Annotations", "", annSamples))

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(tb, err)
	defer file.Close()

	w, err := edf.Create(file, edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate 12-AUG-2009 X X X",
		StartTime:          time.Date(2009, time.August, 12, 16, 15, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		SignalCount:        len(signals),
		Signals:            signals,
	})
	require.NoError(tb, err)

	for r := range records {
		record := make([][]float64, len(signals))
		for ch := range f.Labels {
			record[ch] = make([]float64, f.SampleRate)
			for s := range f.SampleRate {
				if idx := r*f.SampleRate + s; idx < len(f.Data[ch]) {
					record[ch][s] = f.Data[ch][idx]
				}
			}
		}
		tal := other
		if r == 0 {
			tal = first
		}
		record[len(f.Labels)] = bytesToSamples(tal, annSamples)
		require.NoError(tb, w.Write(record))
	}
	require.NoError(tb, w.Close())
}

func identitySignal(label, unit string, spr int) edf.Signal {
	return edf.Signal{
		Label:             label,
		PhysicalDimension: unit,
		PhysicalMin:       digitalMin,
		PhysicalMax:       digitalMax,
		DigitalMin:        digitalMin,
		DigitalMax:        digitalMax,
		SamplesPerRecord:  spr,
	}
}

// talBytes encodes a time-keeping TAL followed by one TAL per annotation.
func talBytes(anns []EDFAnnotation) []byte {
	var buf bytes.Buffer
	buf.WriteString("+0\x14\x14\x00")
	for _, a := range anns {
		buf.WriteString("+" + strconv.FormatFloat(a.Onset, 'f', -1, 64))
		if a.Duration > 0 {
			buf.WriteString("\x15" + strconv.FormatFloat(a.Duration, 'f', -1, 64))
		}
		buf.WriteString(fmt.Sprintf("\x14%s\x14\x00", a.Text))
	}
	return buf.Bytes()
}

// bytesToSamples packs bytes into little-endian int16 samples, zero padded.
func bytesToSamples(b []byte, n int) []float64 {
	padded := make([]byte, 2*n)
	copy(padded, b)
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(padded[2*i:])))
	}
	return out
}
