package epochs

import (
	"fmt"
	"maps"
	"slices"
)

// Collection holds every epoch of one subject artifact: the trial x channel
// x time tensor, one integer class id per trial and the metadata needed to
// interpret them.
type Collection struct {
	Dataset    string
	Subject    string
	Artifact   string
	SampleRate float64
	Window     Window
	Channels   []string
	EventID    map[Label]int // label -> class id used in Labels
	Labels     []int
	Onsets     []int
	Data       [][][]float64

	Normalized bool
	Noise      float64
}

// NewCollection returns an empty collection for the given layout.
func NewCollection(dataset, subject, artifact string, fs float64, w Window, channels []string) *Collection {
	return &Collection{
		Dataset:    dataset,
		Subject:    subject,
		Artifact:   artifact,
		SampleRate: fs,
		Window:     w,
		Channels:   slices.Clone(channels),
		EventID:    make(map[Label]int),
	}
}

// Len returns the number of trials.
func (c *Collection) Len() int {
	return len(c.Data)
}

// Shape returns (trials, channels, samples). An empty collection still
// reports the channel count and window length it was built for.
func (c *Collection) Shape() (trials, channels, samples int) {
	return len(c.Data), len(c.Channels), c.Window.Length(c.SampleRate)
}

// AddEpochs appends extracted epochs labeled through ids. Every epoch must
// match the collection's channel count and window length.
func (c *Collection) AddEpochs(epochs []Epoch, ids map[Label]int) error {
	_, channels, samples := c.Shape()
	for i, ep := range epochs {
		if len(ep.Data) != channels {
			return fmt.Errorf("epoch %d has %d channels, collection has %d", i, len(ep.Data), channels)
		}
		for _, ch := range ep.Data {
			if len(ch) != samples {
				return fmt.Errorf("epoch %d has %d samples, collection has %d", i, len(ch), samples)
			}
		}
	}
	if err := c.mergeEventIDs(ids); err != nil {
		return err
	}

	for _, ep := range epochs {
		c.Data = append(c.Data, ep.Data)
		c.Labels = append(c.Labels, ep.ClassID)
		c.Onsets = append(c.Onsets, ep.Onset)
	}
	return nil
}

// Append concatenates other onto c. Both must share channel layout, sample
// rate and window.
func (c *Collection) Append(other *Collection) error {
	if !slices.Equal(c.Channels, other.Channels) {
		return fmt.Errorf("channel layouts differ: %v vs %v", c.Channels, other.Channels)
	}
	if c.SampleRate != other.SampleRate {
		return fmt.Errorf("sample rates differ: %g vs %g", c.SampleRate, other.SampleRate)
	}
	if c.Window != other.Window {
		return fmt.Errorf("windows differ: %s vs %s", c.Window, other.Window)
	}
	if err := c.mergeEventIDs(other.EventID); err != nil {
		return err
	}

	c.Data = append(c.Data, other.Data...)
	c.Labels = append(c.Labels, other.Labels...)
	c.Onsets = append(c.Onsets, other.Onsets...)
	return nil
}

func (c *Collection) mergeEventIDs(ids map[Label]int) error {
	for label, id := range ids {
		if existing, ok := c.EventID[label]; ok && existing != id {
			return fmt.Errorf("label %s has class id %d, collection uses %d", label, id, existing)
		}
	}
	if c.EventID == nil {
		c.EventID = make(map[Label]int, len(ids))
	}
	maps.Copy(c.EventID, ids)
	return nil
}

// LabelCounts returns the number of trials per label.
func (c *Collection) LabelCounts() map[Label]int {
	byID := make(map[int]Label, len(c.EventID))
	for label, id := range c.EventID {
		byID[id] = label
	}
	counts := make(map[Label]int, len(c.EventID))
	for _, id := range c.Labels {
		label, ok := byID[id]
		if !ok {
			label = Unresolved
		}
		counts[label]++
	}
	return counts
}

// BinaryTargets remaps the class ids to {0, 1}: trials labeled zero become
// 0, every other trial 1.
func (c *Collection) BinaryTargets(zero Label) ([]int, error) {
	id, ok := c.EventID[zero]
	if !ok {
		return nil, fmt.Errorf("collection has no class id for label %s", zero)
	}
	out := make([]int, len(c.Labels))
	for i, l := range c.Labels {
		if l != id {
			out[i] = 1
		}
	}
	return out, nil
}
