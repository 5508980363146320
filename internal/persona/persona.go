// Package persona maps persona ids to the style instructions handed to the
// model. Lookup is total: unknown ids resolve to the default persona.
package persona

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultID = "liora"

type Persona struct {
	ID           string `yaml:"id" json:"id"`
	DisplayName  string `yaml:"display_name" json:"display_name"`
	Emoji        string `yaml:"emoji" json:"emoji"`
	Instructions string `yaml:"instructions" json:"instructions"`
}

var builtin = []Persona{
	{
		ID:          "liora",
		DisplayName: "Liora",
		Emoji:       "😉",
		Instructions: "You are Liora, a warm, witty and curious companion. Keep a friendly, " +
			"conversational tone, show genuine interest in the user, ask a follow-up question " +
			"when it feels natural, and weave in interesting facts when they fit.",
	},
	{
		ID:          "mentor",
		DisplayName: "Mentor",
		Emoji:       "🎓",
		Instructions: "You are a patient mentor. Explain ideas step by step, check understanding, " +
			"use concrete examples and encourage the user to reason things through.",
	},
	{
		ID:          "comedian",
		DisplayName: "Comedian",
		Emoji:       "😂",
		Instructions: "You are a light-hearted comedian. Answer helpfully but add playful jokes, " +
			"puns and witty observations. Never be mean-spirited.",
	},
	{
		ID:          "analyst",
		DisplayName: "Analyst",
		Emoji:       "📊",
		Instructions: "You are a precise analyst. Be structured and concise, state assumptions, " +
			"prefer bullet points and numbers, and flag uncertainty explicitly.",
	},
	{
		ID:          "poet",
		DisplayName: "Poet",
		Emoji:       "🪶",
		Instructions: "You are a gentle poet. Answer with vivid imagery and lyrical phrasing, " +
			"occasionally in short verse, while still addressing the user's question.",
	},
	{
		ID:          "coach",
		DisplayName: "Coach",
		Emoji:       "💪",
		Instructions: "You are an upbeat coach. Be encouraging and action-oriented, break goals " +
			"into small next steps and celebrate progress.",
	},
}

// Selector holds the known personas.
type Selector struct {
	personas  map[string]Persona
	defaultID string
}

// NewSelector returns a selector over the built-in personas. defaultID falls
// back to DefaultID when it names no persona.
func NewSelector(defaultID string) *Selector {
	s := &Selector{personas: make(map[string]Persona, len(builtin)), defaultID: DefaultID}
	for _, p := range builtin {
		s.personas[p.ID] = p
	}
	if _, ok := s.personas[normalize(defaultID)]; ok {
		s.defaultID = normalize(defaultID)
	}
	return s
}

type file struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile merges personas from a YAML file over the current set. Entries
// without an id or instructions are skipped.
func (s *Selector) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personas: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode personas: %w", err)
	}
	for _, p := range f.Personas {
		p.ID = normalize(p.ID)
		if p.ID == "" || strings.TrimSpace(p.Instructions) == "" {
			continue
		}
		if p.DisplayName == "" {
			p.DisplayName = p.ID
		}
		s.personas[p.ID] = p
	}
	return nil
}

// Get never fails: unknown or empty ids return the default persona.
func (s *Selector) Get(id string) Persona {
	if p, ok := s.personas[normalize(id)]; ok {
		return p
	}
	return s.personas[s.defaultID]
}

// Has reports whether id names a known persona.
func (s *Selector) Has(id string) bool {
	_, ok := s.personas[normalize(id)]
	return ok
}

func (s *Selector) Default() Persona { return s.personas[s.defaultID] }

// Names returns the known persona ids in sorted order.
func (s *Selector) Names() []string {
	out := make([]string, 0, len(s.personas))
	for id := range s.personas {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Label is the emoji plus display name, e.g. "😉 Liora".
func (p Persona) Label() string {
	return strings.TrimSpace(p.Emoji + " " + p.DisplayName)
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Instruction returns the style instructions for id, or the default's.
func (s *Selector) Instruction(id string) string { return s.Get(id).Instructions }
