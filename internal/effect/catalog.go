// Package effect holds the fixed table of voice effects. An effect is nothing
// more than a playback-rate multiplier with display metadata.
package effect

import (
	"fmt"
	"sync"
)

// Effect describes one voice effect
type Effect struct {
	ID          string  `json:"id" yaml:"id"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	Icon        string  `json:"icon" yaml:"icon"`
	Rate        float64 `json:"rate" yaml:"rate"`
	PitchLabel  string  `json:"pitch_label" yaml:"pitch_label"`
}

const DefaultID = "baby-voice"

var catalog = []Effect{
	{ID: "baby-voice", DisplayName: "Baby", Icon: "assets/icons/baby.png", Rate: 2.0, PitchLabel: "Very high"},
	{ID: "robot-voice", DisplayName: "Robot", Icon: "assets/icons/robot.png", Rate: 1.3, PitchLabel: "Slightly high"},
	{ID: "monster-voice", DisplayName: "Monster", Icon: "assets/icons/monster.png", Rate: 0.6, PitchLabel: "Low"},
	{ID: "witch-voice", DisplayName: "Witch", Icon: "assets/icons/witch.png", Rate: 1.6, PitchLabel: "High"},
	{ID: "demon-voice", DisplayName: "Demon", Icon: "assets/icons/demon.png", Rate: 0.45, PitchLabel: "Very low"},
}

var byID = func() map[string]Effect {
	m := make(map[string]Effect, len(catalog))
	for _, e := range catalog {
		m[e.ID] = e
	}
	return m
}()

// All returns the effects in display order
func All() []Effect {
	out := make([]Effect, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves an effect by id
func Lookup(id string) (Effect, error) {
	e, ok := byID[id]
	if !ok {
		return Effect{}, fmt.Errorf("unknown effect '%s'", id)
	}
	return e, nil
}

// Default returns the effect selected at startup
func Default() Effect {
	return byID[DefaultID]
}

// Selection is the currently selected effect id. It only influences the
// next playback; running playbacks keep the rate they started with.
type Selection struct {
	mu sync.RWMutex
	id string
}

// NewSelection starts with the given effect, falling back to the default
// effect when id is empty.
func NewSelection(id string) (*Selection, error) {
	if id == "" {
		id = DefaultID
	}
	if _, err := Lookup(id); err != nil {
		return nil, err
	}
	return &Selection{id: id}, nil
}

// Select changes the current effect
func (s *Selection) Select(id string) (Effect, error) {
	e, err := Lookup(id)
	if err != nil {
		return Effect{}, err
	}

	s.mu.Lock()
	s.id = id
	s.mu.Unlock()

	return e, nil
}

// Current returns the selected effect
func (s *Selection) Current() Effect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return byID[s.id]
}
