// Package script holds the fixed question sequences asked for each document
// type. The table is embedded at build time and never changes at runtime.
package script

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/voxform/voxform/internal/store"
	"gopkg.in/yaml.v3"
)

type QuestionType string

const (
	TypeText   QuestionType = "text"
	TypeNumber QuestionType = "number"
	TypeDate   QuestionType = "date"
)

type Question struct {
	ID     string       `yaml:"id" json:"id"`
	Label  string       `yaml:"label" json:"label"`
	Prompt string       `yaml:"prompt" json:"prompt"`
	Type   QuestionType `yaml:"type" json:"type"`
}

type Script struct {
	DocumentType store.DocumentType `yaml:"document_type" json:"document_type"`
	Questions    []Question         `yaml:"questions" json:"questions"`
}

// Len is the number of questions, which is also the size of a complete
// answer set.
func (s Script) Len() int { return len(s.Questions) }

type file struct {
	CompletionPrompt string   `yaml:"completion_prompt"`
	Scripts          []Script `yaml:"scripts"`
}

var ErrUnknownType = errors.New("no script for document type")

//go:embed scripts.yaml
var embedded []byte

// Registry is an immutable lookup table of scripts.
type Registry struct {
	order      []store.DocumentType
	scripts    map[store.DocumentType]Script
	completion string
}

var defaultRegistry = mustLoad(embedded)

// Default returns the registry built from the embedded table.
func Default() *Registry { return defaultRegistry }

func mustLoad(data []byte) *Registry {
	r, err := Load(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("script: embedded table is invalid: %v", err))
	}
	return r
}

// Load parses and validates a script table.
func Load(r io.Reader) (*Registry, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode script table: %w", err)
	}

	reg := &Registry{
		scripts:    make(map[store.DocumentType]Script, len(f.Scripts)),
		completion: f.CompletionPrompt,
	}
	for _, s := range f.Scripts {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := reg.scripts[s.DocumentType]; dup {
			return nil, fmt.Errorf("duplicate script for %q", s.DocumentType)
		}
		reg.scripts[s.DocumentType] = s
		reg.order = append(reg.order, s.DocumentType)
	}
	return reg, nil
}

func validate(s Script) error {
	if s.DocumentType == "" {
		return errors.New("script without document_type")
	}
	if len(s.Questions) == 0 {
		return fmt.Errorf("script %q has no questions", s.DocumentType)
	}
	seen := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		if q.ID == "" || q.Prompt == "" {
			return fmt.Errorf("script %q question %d needs id and prompt", s.DocumentType, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("script %q repeats question id %q", s.DocumentType, q.ID)
		}
		seen[q.ID] = true
		switch q.Type {
		case TypeText, TypeNumber, TypeDate:
		default:
			return fmt.Errorf("script %q question %q has unknown type %q", s.DocumentType, q.ID, q.Type)
		}
	}
	return nil
}

// Lookup returns a copy of the script so callers cannot mutate the table.
func (r *Registry) Lookup(t store.DocumentType) (Script, error) {
	s, ok := r.scripts[t]
	if !ok {
		return Script{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return Script{
		DocumentType: s.DocumentType,
		Questions:    append([]Question(nil), s.Questions...),
	}, nil
}

// Types lists document types in table order.
func (r *Registry) Types() []store.DocumentType {
	return append([]store.DocumentType(nil), r.order...)
}

// CompletionPrompt is spoken once a script has been fully answered.
func (r *Registry) CompletionPrompt() string { return r.completion }
