package notify

import (
	"bytes"
	"errors"
	"text/template"
)

// DefaultTemplate renders both bill and payment notifications.
const DefaultTemplate = `[Water Bill {{.EventLabel}}]
Customer: {{.Customer}}
Bill: #{{.BillID}}
{{- if .Period }}
Period: {{.Period}}
Usage: {{.Usage}} m3
{{- end }}
Amount: {{.Amount}} {{.Currency}}
{{- if .DueDate }}
Due: {{.DueDate}}
{{- end }}
{{- if .Method }}
Method: {{.Method}}
Status: {{.Status}}
Balance: {{.Balance}} {{.Currency}}
{{- end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Event      string
	EventLabel string
	Customer   string
	CustomerID int64
	BillID     int64
	Period     string
	Usage      string
	Amount     string
	Currency   string
	DueDate    string
	Method     string
	Status     string
	Balance    string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("bill-notification").Option("missingkey=error").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notify template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
