// Package generation turns user text into created, rewritten or analyzed
// text through a generative-language backend.
package generation

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aiox-platform/quill/internal/language"
	"github.com/aiox-platform/quill/internal/session"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("generation: empty response")

// Generator produces text for one task. Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, text string, kind session.TaskKind, lang string) (string, error)
}

//go:embed prompts.yaml
var promptsYAML []byte

type promptSet struct {
	System string            `yaml:"system"`
	Format string            `yaml:"format"`
	Tasks  map[string]string `yaml:"tasks"`
}

// Prompts holds the instruction texts per language and task kind.
type Prompts struct {
	sets map[string]promptSet
}

// LoadPrompts parses the embedded prompt tables.
func LoadPrompts() (*Prompts, error) {
	var sets map[string]promptSet
	if err := yaml.Unmarshal(promptsYAML, &sets); err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}
	for _, lang := range []string{language.English, language.Russian} {
		set, ok := sets[lang]
		if !ok {
			return nil, fmt.Errorf("prompts: missing %q set", lang)
		}
		for _, kind := range session.TaskKinds {
			if set.Tasks[string(kind)] == "" {
				return nil, fmt.Errorf("prompts: %q set has no %q task", lang, kind)
			}
		}
	}
	return &Prompts{sets: sets}, nil
}

// Build returns the system and user messages for one request. Unknown kinds
// use the improve instruction.
func (p *Prompts) Build(text string, kind session.TaskKind, lang string) (system, user string) {
	set := p.sets[language.Normalize(lang)]
	task, ok := set.Tasks[string(kind)]
	if !ok {
		task = set.Tasks[string(session.TaskImprove)]
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(task))
	b.WriteString("\n\n")
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(set.Format))
	return strings.TrimSpace(set.System), b.String()
}
