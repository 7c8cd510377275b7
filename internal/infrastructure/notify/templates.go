package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	domnotify "github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

type templateSpec struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Templates is a parsed set of subject/body pairs keyed by name.
type Templates struct {
	set map[string]compiled
}

// DefaultTemplates parses the templates shipped with the binary.
func DefaultTemplates() (*Templates, error) {
	return ParseTemplates(defaultTemplates)
}

// ParseTemplates reads a YAML document mapping names to {subject, body}.
func ParseTemplates(data []byte) (*Templates, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("notify: parse templates: %w", err)
	}
	t := &Templates{set: make(map[string]compiled, len(specs))}
	for name, spec := range specs {
		subj, err := template.New(name + ".subject").Option("missingkey=error").Parse(spec.Subject)
		if err != nil {
			return nil, fmt.Errorf("notify: template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("notify: template %s body: %w", name, err)
		}
		t.set[name] = compiled{subject: subj, body: body}
	}
	return t, nil
}

func (t *Templates) Render(name string, data any) (string, string, error) {
	c, ok := t.set[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", domnotify.ErrUnknownTemplate, name)
	}
	var subj, body bytes.Buffer
	if err := c.subject.Execute(&subj, data); err != nil {
		return "", "", fmt.Errorf("notify: render %s subject: %w", name, err)
	}
	if err := c.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("notify: render %s body: %w", name, err)
	}
	return strings.TrimSpace(subj.String()), body.String(), nil
}
