package dataset

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"
)

// DefaultTemplates phrase a lookup update the way a colleague would ask for
// it. Fields: KeyHeader, Key, Column, Value, Previous.
var DefaultTemplates = []string{
	"Change the {{.Column}} of {{.Key}} to {{.Value}}",
	"For {{.Key}}, set {{.Column}} to {{.Value}}",
	"Update {{.Column}} for {{.KeyHeader}} {{.Key}}: it should be {{.Value}}",
	"{{.Key}} needs its {{.Column}} changed to {{.Value}}",
	"Can you put {{.Value}} in the {{.Column}} column for {{.Key}}?",
	"{{if .Previous}}{{.Key}} is no longer {{.Previous}}, make its {{.Column}} {{.Value}}{{else}}Fill in {{.Column}} for {{.Key}} with {{.Value}}{{end}}",
}

// InstructionData is what a template can reference.
type InstructionData struct {
	KeyHeader string
	Key       string
	Column    string
	Value     string
	Previous  string
}

// Renderer turns a resolved update into natural-language text.
type Renderer struct {
	templates []*template.Template
}

// NewRenderer parses the given templates, or DefaultTemplates when none are
// given.
func NewRenderer(texts ...string) (*Renderer, error) {
	if len(texts) == 0 {
		texts = DefaultTemplates
	}
	r := &Renderer{}
	for i, text := range texts {
		t, err := template.New(fmt.Sprintf("instruction-%d", i)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing instruction template %d: %w", i, err)
		}
		r.templates = append(r.templates, t)
	}
	return r, nil
}

// Render fills a randomly chosen template.
func (r *Renderer) Render(rng *rand.Rand, data InstructionData) (string, error) {
	t := r.templates[rng.IntN(len(r.templates))]
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
