package recording

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	gdfFixedHeaderSize  = 256
	gdfSignalHeaderSize = 256

	// GDF versions below this use the 1.x header layout.
	gdfVersion2 = 1.90
	// GDF versions below this store the event table sample rate in 3 bytes.
	gdfEventRateAsFloat = 1.94
)

// GDF sample types.
const (
	gdfInt8    = 1
	gdfUint8   = 2
	gdfInt16   = 3
	gdfUint16  = 4
	gdfInt32   = 5
	gdfUint32  = 6
	gdfInt64   = 7
	gdfUint64  = 8
	gdfFloat32 = 16
	gdfFloat64 = 17
)

// gdfPhysDimCodes maps the GDF 2 physical dimension codes used for EEG.
var gdfPhysDimCodes = map[uint16]string{
	4256: "V",
	4274: "mV",
	4275: "uV",
	4276: "nV",
}

type gdfHeader struct {
	version    float64
	headerLen  int
	records    int
	duration   float64 // seconds per data record
	signals    []gdfSignal
	recordSize int
}

type gdfSignal struct {
	label    string
	physDim  string
	physMin  float64
	physMax  float64
	digMin   float64
	digMax   float64
	spr      int
	dataType uint32
}

func gdfTypeSize(t uint32) int {
	switch t {
	case gdfInt8, gdfUint8:
		return 1
	case gdfInt16, gdfUint16:
		return 2
	case gdfInt32, gdfUint32, gdfFloat32:
		return 4
	case gdfInt64, gdfUint64, gdfFloat64:
		return 8
	default:
		return 0
	}
}

func gdfSample(b []byte, t uint32) float64 {
	le := binary.LittleEndian
	switch t {
	case gdfInt8:
		return float64(int8(b[0]))
	case gdfUint8:
		return float64(b[0])
	case gdfInt16:
		return float64(int16(le.Uint16(b)))
	case gdfUint16:
		return float64(le.Uint16(b))
	case gdfInt32:
		return float64(int32(le.Uint32(b)))
	case gdfUint32:
		return float64(le.Uint32(b))
	case gdfInt64:
		return float64(int64(le.Uint64(b)))
	case gdfUint64:
		return float64(le.Uint64(b))
	case gdfFloat32:
		return float64(math.Float32frombits(le.Uint32(b)))
	default:
		return math.Float64frombits(le.Uint64(b))
	}
}

func gdfString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

// decodeGDF decodes a GDF 1.x or 2.x file held in memory.
func decodeGDF(raw []byte) (*Recording, error) {
	hdr, err := parseGDFHeader(raw)
	if err != nil {
		return nil, err
	}

	fs := float64(hdr.signals[0].spr) / hdr.duration
	for _, sig := range hdr.signals[1:] {
		if sig.spr != hdr.signals[0].spr {
			return nil, fmt.Errorf("signal %q has %d samples per record, expected %d: mixed sampling rates are not supported",
				sig.label, sig.spr, hdr.signals[0].spr)
		}
	}

	dataEnd := hdr.headerLen + hdr.records*hdr.recordSize
	if len(raw) < dataEnd {
		return nil, fmt.Errorf("data block truncated: need %d bytes, file has %d", dataEnd, len(raw))
	}

	rec := &Recording{
		SampleRate: fs,
		Channels:   make([]Channel, len(hdr.signals)),
		Data:       make([][]float64, len(hdr.signals)),
	}

	type calibration struct{ gain, offset float64 }
	cals := make([]calibration, len(hdr.signals))
	for i, sig := range hdr.signals {
		if sig.digMax == sig.digMin {
			return nil, fmt.Errorf("signal %q has a degenerate digital range", sig.label)
		}
		gain := (sig.physMax - sig.physMin) / (sig.digMax - sig.digMin)
		scale := unitScale(sig.physDim)
		cals[i] = calibration{
			gain:   gain * scale,
			offset: (sig.physMin - sig.digMin*gain) * scale,
		}
		rec.Channels[i] = Channel{Name: sig.label, Unit: sig.physDim}
		rec.Data[i] = make([]float64, hdr.records*sig.spr)
	}

	off := hdr.headerLen
	for r := range hdr.records {
		for i, sig := range hdr.signals {
			size := gdfTypeSize(sig.dataType)
			dst := rec.Data[i][r*sig.spr : (r+1)*sig.spr]
			for s := range dst {
				dst[s] = gdfSample(raw[off:off+size], sig.dataType)*cals[i].gain + cals[i].offset
				off += size
			}
		}
	}

	rec.Annotations, err = parseGDFEvents(raw[dataEnd:], hdr.version, fs)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func parseGDFHeader(raw []byte) (*gdfHeader, error) {
	if len(raw) < gdfFixedHeaderSize {
		return nil, fmt.Errorf("file too short for a GDF header: %d bytes", len(raw))
	}
	id := string(raw[0:8])
	if !strings.HasPrefix(id, "GDF") {
		return nil, fmt.Errorf("not a GDF file: version field %q", strings.TrimSpace(id))
	}
	version, err := strconv.ParseFloat(strings.TrimSpace(id[3:]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GDF version %q: %w", strings.TrimSpace(id), err)
	}

	le := binary.LittleEndian
	hdr := &gdfHeader{version: version}

	var ns int
	if version < gdfVersion2 {
		hdr.headerLen = int(int64(le.Uint64(raw[184:192])))
		ns = int(le.Uint32(raw[252:256]))
	} else {
		hdr.headerLen = int(le.Uint16(raw[184:186])) * 256
		ns = int(le.Uint16(raw[252:254]))
	}
	hdr.records = int(int64(le.Uint64(raw[236:244])))
	num, den := le.Uint32(raw[244:248]), le.Uint32(raw[248:252])

	switch {
	case ns <= 0:
		return nil, fmt.Errorf("GDF header declares %d signals", ns)
	case hdr.records < 0:
		return nil, fmt.Errorf("GDF header declares an unknown number of data records")
	case num == 0 || den == 0:
		return nil, fmt.Errorf("GDF header has invalid record duration %d/%d", num, den)
	case hdr.headerLen < gdfFixedHeaderSize+ns*gdfSignalHeaderSize:
		return nil, fmt.Errorf("GDF header length %d too small for %d signals", hdr.headerLen, ns)
	case len(raw) < hdr.headerLen:
		return nil, fmt.Errorf("GDF header truncated: need %d bytes, file has %d", hdr.headerLen, len(raw))
	}
	hdr.duration = float64(num) / float64(den)

	// Signal headers are stored column by column: all labels, then all
	// transducers, and so on.
	off := gdfFixedHeaderSize
	column := func(size int) func(i int) []byte {
		start := off
		off += ns * size
		return func(i int) []byte { return raw[start+i*size : start+(i+1)*size] }
	}

	hdr.signals = make([]gdfSignal, ns)
	labels := column(16)
	_ = column(80) // transducer
	if version < gdfVersion2 {
		physDim := column(8)
		physMin, physMax := column(8), column(8)
		digMin, digMax := column(8), column(8)
		_ = column(80) // prefiltering
		spr, types := column(4), column(4)
		for i := range hdr.signals {
			hdr.signals[i] = gdfSignal{
				label:    gdfString(labels(i)),
				physDim:  gdfString(physDim(i)),
				physMin:  math.Float64frombits(le.Uint64(physMin(i))),
				physMax:  math.Float64frombits(le.Uint64(physMax(i))),
				digMin:   float64(int64(le.Uint64(digMin(i)))),
				digMax:   float64(int64(le.Uint64(digMax(i)))),
				spr:      int(le.Uint32(spr(i))),
				dataType: le.Uint32(types(i)),
			}
		}
	} else {
		physDim, physCode := column(6), column(2)
		physMin, physMax := column(8), column(8)
		digMin, digMax := column(8), column(8)
		_ = column(68) // prefiltering
		_ = column(12) // lowpass, highpass, notch
		spr, types := column(4), column(4)
		for i := range hdr.signals {
			dim := gdfString(physDim(i))
			if dim == "" {
				dim = gdfPhysDimCodes[le.Uint16(physCode(i))]
			}
			hdr.signals[i] = gdfSignal{
				label:    gdfString(labels(i)),
				physDim:  dim,
				physMin:  math.Float64frombits(le.Uint64(physMin(i))),
				physMax:  math.Float64frombits(le.Uint64(physMax(i))),
				digMin:   math.Float64frombits(le.Uint64(digMin(i))),
				digMax:   math.Float64frombits(le.Uint64(digMax(i))),
				spr:      int(le.Uint32(spr(i))),
				dataType: le.Uint32(types(i)),
			}
		}
	}

	for _, sig := range hdr.signals {
		size := gdfTypeSize(sig.dataType)
		if size == 0 {
			return nil, fmt.Errorf("signal %q has unsupported GDF data type %d", sig.label, sig.dataType)
		}
		if sig.spr <= 0 {
			return nil, fmt.Errorf("signal %q has %d samples per record", sig.label, sig.spr)
		}
		hdr.recordSize += sig.spr * size
	}

	if limit := (len(raw) - hdr.headerLen) / hdr.recordSize; hdr.records > limit {
		return nil, fmt.Errorf("GDF header declares %d data records, file holds at most %d", hdr.records, limit)
	}

	return hdr, nil
}

// parseGDFEvents decodes the event table that follows the data block.
// A file without an event table yields no annotations.
func parseGDFEvents(table []byte, version, fs float64) ([]Annotation, error) {
	if len(table) == 0 {
		return nil, nil
	}
	if len(table) < 8 {
		return nil, fmt.Errorf("GDF event table header truncated")
	}

	le := binary.LittleEndian
	mode := table[0]
	var n int
	var eventRate float64
	if version < gdfEventRateAsFloat {
		eventRate = float64(uint32(table[1]) | uint32(table[2])<<8 | uint32(table[3])<<16)
		n = int(le.Uint32(table[4:8]))
	} else {
		n = int(uint32(table[1]) | uint32(table[2])<<8 | uint32(table[3])<<16)
		eventRate = float64(math.Float32frombits(le.Uint32(table[4:8])))
	}

	entry := 4 + 2
	if mode == 3 {
		entry += 2 + 4
	}
	if len(table) < 8+n*entry {
		return nil, fmt.Errorf("GDF event table truncated: %d events declared", n)
	}

	ratio := 1.0
	if eventRate > 0 && math.Abs(eventRate-fs) > 1e-9 {
		ratio = fs / eventRate
	}
	toSample := func(v uint32) int {
		return int(math.Round(float64(v) * ratio))
	}

	pos := table[8 : 8+4*n]
	typ := table[8+4*n : 8+6*n]
	annotations := make([]Annotation, n)
	for i := range annotations {
		p := le.Uint32(pos[4*i:])
		if p > 0 {
			// positions are 1-based
			p--
		}
		annotations[i] = Annotation{
			Sample: toSample(p),
			Code:   strconv.Itoa(int(le.Uint16(typ[2*i:]))),
		}
	}
	if mode == 3 {
		dur := table[8+8*n : 8+12*n]
		for i := range annotations {
			annotations[i].Duration = toSample(le.Uint32(dur[4*i:]))
		}
	}

	return annotations, nil
}
