// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package notifier

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/0x0BSoD/melabel/internal/model"
)

type Category string

const (
	CategoryStandard    Category = "standard"
	CategoryEngaging    Category = "engaging"
	CategoryInformative Category = "informative"
	CategoryFriendly    Category = "friendly"
)

//go:embed templates.yaml
var catalogueYAML []byte

type Template struct {
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`
	Body     string   `yaml:"body"`

	tmpl *template.Template
}

type Catalogue struct {
	templates []*Template
}

// TemplateData is what a template body sees.
type TemplateData struct {
	Emoji    string
	Title    string
	Summary  string
	URL      string
	Hashtags string
}

// DefaultCatalogue parses the embedded template set.
func DefaultCatalogue() (*Catalogue, error) {
	return ParseCatalogue(catalogueYAML)
}

func ParseCatalogue(raw []byte) (*Catalogue, error) {
	var doc struct {
		Templates []*Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(doc.Templates) == 0 {
		return nil, fmt.Errorf("parse templates: catalogue is empty")
	}

	for _, t := range doc.Templates {
		tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("parse template %q: %w", t.Name, err)
		}
		t.tmpl = tmpl
	}

	return &Catalogue{templates: doc.Templates}, nil
}

func (c *Catalogue) Names() []string {
	return lo.Map(c.templates, func(t *Template, _ int) string { return t.Name })
}

// Get returns the named template, or the first template of the catalogue if no such name exists.
func (c *Catalogue) Get(name string) *Template {
	if t, ok := lo.Find(c.templates, func(t *Template) bool { return t.Name == name }); ok {
		return t
	}
	return c.templates[0]
}

func (c *Catalogue) ByCategory(cat Category) []*Template {
	return lo.Filter(c.templates, func(t *Template, _ int) bool { return t.Category == cat })
}

func (t *Template) Render(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", t.Name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DifficultyEmoji maps the first difficulty tag to its traffic-light marker.
func DifficultyEmoji(difficulty []string) string {
	switch model.Difficulty(lo.FirstOr(difficulty, "")) {
	case model.DifficultyBeginner:
		return "🟢"
	case model.DifficultyAdvanced:
		return "🔴"
	default:
		return "🟡"
	}
}
