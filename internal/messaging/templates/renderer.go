package templates

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// Customer-facing WhatsApp messages. Data fields: Clinic, ContactPhone, Name, Date, Slot, Service.
const (
	BookingConfirmed = `Hi{{with .Name}} {{.}}{{end}}, your appointment at {{.Clinic}} is confirmed. Date: {{.Date}}, Time: {{.Slot}}.{{with .Service}} Treatment: {{.}}.{{end}} For any change, call or WhatsApp us. – {{.Clinic}}`
	BookingCancelled = `Hi{{with .Name}} {{.}}{{end}}, your appointment at {{.Clinic}} on {{.Date}} at {{.Slot}} has been cancelled. To book again, visit our website or WhatsApp {{.ContactPhone}}. – {{.Clinic}}`
)

// Renderer renders small text templates for outbound messaging. Parsed templates are cached by name.
type Renderer struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

// Render compiles the provided template text with strict missing-key semantics.
func (r *Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := r.lookup(name, tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) lookup(name, tmpl string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := name + "\x00" + tmpl
	if t, ok := r.cache[key]; ok {
		return t, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	if r.cache == nil {
		r.cache = make(map[string]*template.Template)
	}
	r.cache[key] = t
	return t, nil
}
