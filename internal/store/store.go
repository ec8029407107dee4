// Package store persists epoch collections as .epo files.
//
// An .epo file is an 8 byte magic, a little-endian uint32 header length, a
// YAML header and the trial x channel x time payload as little-endian
// float64 values in row-major order. Files are written to a temporary file
// in the target directory and renamed into place, so a reader never sees a
// partial artifact.
package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/errors"
)

// Extension is the file extension of epoch artifacts.
const Extension = ".epo"

// FormatVersion is written into every header.
const FormatVersion = 1

var magic = [8]byte{'E', 'E', 'G', 'E', 'P', 'O', 0x00, 0x01}

// maxHeaderSize bounds the header length read from disk.
const maxHeaderSize = 64 << 20

// Header describes the payload of an .epo file.
type Header struct {
	Version    int            `yaml:"version"`
	Dataset    string         `yaml:"dataset"`
	Subject    string         `yaml:"subject"`
	Artifact   string         `yaml:"artifact"`
	SampleRate float64        `yaml:"sample_rate"`
	Window     epochs.Window  `yaml:"window,flow"`
	Channels   []string       `yaml:"channels,flow"`
	EventID    map[string]int `yaml:"event_id"`
	Shape      []int          `yaml:"shape,flow"`
	Labels     []int          `yaml:"labels,flow"`
	Onsets     []int          `yaml:"onsets,flow"`
	Normalized bool           `yaml:"normalized"`
	Noise      float64        `yaml:"noise"`
}

// Trials returns the number of trials the header declares.
func (h *Header) Trials() int {
	if len(h.Shape) != 3 {
		return 0
	}
	return h.Shape[0]
}

func headerOf(c *epochs.Collection) *Header {
	trials, channels, samples := c.Shape()
	ids := make(map[string]int, len(c.EventID))
	for label, id := range c.EventID {
		ids[string(label)] = id
	}
	return &Header{
		Version:    FormatVersion,
		Dataset:    c.Dataset,
		Subject:    c.Subject,
		Artifact:   c.Artifact,
		SampleRate: c.SampleRate,
		Window:     c.Window,
		Channels:   slices.Clone(c.Channels),
		EventID:    ids,
		Shape:      []int{trials, channels, samples},
		Labels:     nonNil(c.Labels),
		Onsets:     nonNil(c.Onsets),
		Normalized: c.Normalized,
		Noise:      c.Noise,
	}
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return slices.Clone(s)
}

// Encode writes c in .epo format to w.
func Encode(w io.Writer, c *epochs.Collection) error {
	h := headerOf(c)
	if len(h.Labels) != h.Shape[0] || len(h.Onsets) != h.Shape[0] {
		return fmt.Errorf("collection has %d trials but %d labels and %d onsets", h.Shape[0], len(h.Labels), len(h.Onsets))
	}

	head, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(head)))
	if _, err := bw.Write(n[:]); err != nil {
		return err
	}
	if _, err := bw.Write(head); err != nil {
		return err
	}

	var buf [8]byte
	for i, trial := range c.Data {
		if len(trial) != h.Shape[1] {
			return fmt.Errorf("trial %d has %d channels, header declares %d", i, len(trial), h.Shape[1])
		}
		for _, ch := range trial {
			if len(ch) != h.Shape[2] {
				return fmt.Errorf("trial %d has %d samples, header declares %d", i, len(ch), h.Shape[2])
			}
			for _, x := range ch {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
				if _, err := bw.Write(buf[:]); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// Write stores c at path, creating parent directories, and returns the
// number of bytes written.
func Write(path string, c *epochs.Collection) (int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryWrite).
			Context("operation", "encode").
			FileContext(path, 0).
			Build()
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return 0, errors.WriteError(err, path)
	}
	return int64(buf.Len()), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_epo_*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Decode reads an .epo stream. The payload is read before anything is
// allocated from the header shape, so a corrupt shape fails as a truncated
// payload.
func Decode(r io.Reader) (*epochs.Collection, error) {
	br := bufio.NewReader(r)
	h, err := decodeHeader(br)
	if err != nil {
		return nil, err
	}

	size, err := h.PayloadSize()
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(io.LimitReader(br, size+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	switch {
	case int64(len(payload)) < size:
		return nil, fmt.Errorf("payload truncated: header declares %d bytes, found %d", size, len(payload))
	case int64(len(payload)) > size:
		return nil, fmt.Errorf("trailing data after payload")
	}

	trials, channels, samples := h.Shape[0], h.Shape[1], h.Shape[2]
	c := epochs.NewCollection(h.Dataset, h.Subject, h.Artifact, h.SampleRate, h.Window, h.Channels)
	for label, id := range h.EventID {
		c.EventID[epochs.Label(label)] = id
	}
	c.Labels = h.Labels
	c.Onsets = h.Onsets
	c.Normalized = h.Normalized
	c.Noise = h.Noise
	c.Data = make([][][]float64, trials)

	off := 0
	for t := range c.Data {
		c.Data[t] = make([][]float64, channels)
		for ch := range c.Data[t] {
			vals := make([]float64, samples)
			for i := range vals {
				vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off:]))
				off += 8
			}
			c.Data[t][ch] = vals
		}
	}
	return c, nil
}

// PayloadSize returns the payload length in bytes the shape implies.
func (h *Header) PayloadSize() (int64, error) {
	if len(h.Shape) != 3 {
		return 0, fmt.Errorf("invalid shape %v", h.Shape)
	}
	if slices.ContainsFunc(h.Shape, func(n int) bool { return n < 0 }) {
		return 0, fmt.Errorf("invalid shape %v", h.Shape)
	}
	if slices.Contains(h.Shape, 0) {
		return 0, nil
	}
	size := int64(8)
	for _, n := range h.Shape {
		if size > math.MaxInt64/int64(n) {
			return 0, fmt.Errorf("shape %v overflows the payload size", h.Shape)
		}
		size *= int64(n)
	}
	return size, nil
}

func decodeHeader(r io.Reader) (*Header, error) {
	var pre [12]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, fmt.Errorf("read preamble: %w", err)
	}
	if !bytes.Equal(pre[:8], magic[:]) {
		return nil, fmt.Errorf("not an epoch file")
	}
	size := binary.LittleEndian.Uint32(pre[8:])
	if size > maxHeaderSize {
		return nil, fmt.Errorf("header length %d exceeds limit", size)
	}

	head := make([]byte, size)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := yaml.Unmarshal(head, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", h.Version)
	}
	if len(h.Shape) != 3 || h.Shape[0] < 0 || h.Shape[1] < 0 || h.Shape[2] < 0 {
		return nil, fmt.Errorf("invalid shape %v", h.Shape)
	}
	if len(h.Channels) != h.Shape[1] {
		return nil, fmt.Errorf("header lists %d channels, shape declares %d", len(h.Channels), h.Shape[1])
	}
	if len(h.Labels) != h.Shape[0] || len(h.Onsets) != h.Shape[0] {
		return nil, fmt.Errorf("header lists %d labels and %d onsets for %d trials", len(h.Labels), len(h.Onsets), h.Shape[0])
	}
	return &h, nil
}

// Read loads the collection stored at path.
func Read(path string) (*epochs.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(err, path)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, errors.ReadError(err, path)
	}
	return c, nil
}

// ReadHeader loads only the header of the artifact at path.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(err, path)
	}
	defer f.Close()

	h, err := decodeHeader(f)
	if err != nil {
		return nil, errors.ReadError(err, path)
	}
	return h, nil
}

func openError(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.MissingInput(err, path)
	}
	return errors.ReadError(err, path)
}
