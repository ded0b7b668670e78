package notify

import (
	"bytes"
	"errors"
	"text/template"

	alerting "quake-pager/internal/alerting/domain"
)

const LongTemplate = `PAGER Alert: {{.SummaryLevel}} ({{.EventCode}} version {{.Version}})
Location: {{.Location}}
Magnitude: {{.Magnitude}}  Depth: {{.DepthKM}} km
Origin Time: {{.OriginTime}} ({{.Elapsed}} ago)
Maximum Intensity: MMI {{.MaxIntensity}}
Fatality Alert: {{.FatalityLevel}}
Economic Alert: {{.EconomicLevel}}
{{ if .Impact1 }}{{.Impact1}}
{{ end }}{{ if .Impact2 }}{{.Impact2}}
{{ end }}`

const ShortTemplate = `PAGER {{.SummaryLevel}} M{{.Magnitude}} {{.EventCode}} v{{.Version}} MMI {{.MaxIntensity}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	EventCode     string
	Version       int
	Location      string
	Magnitude     string
	DepthKM       string
	OriginTime    string
	Elapsed       string
	SummaryLevel  string
	FatalityLevel string
	EconomicLevel string
	MaxIntensity  int
	Impact1       string
	Impact2       string
}

// Template renders notification content in long and short formats.
type Template struct {
	long  *template.Template
	short *template.Template
}

// NewTemplate parses notification templates, falling back to the defaults.
func NewTemplate(long, short string) (*Template, error) {
	if long == "" {
		long = LongTemplate
	}
	if short == "" {
		short = ShortTemplate
	}
	parsedLong, err := template.New("alert-long").Parse(long)
	if err != nil {
		return nil, err
	}
	parsedShort, err := template.New("alert-short").Parse(short)
	if err != nil {
		return nil, err
	}
	return &Template{long: parsedLong, short: parsedShort}, nil
}

// Render applies the template for the requested format.
func (t *Template) Render(format string, data TemplateData) (string, error) {
	if t == nil || t.long == nil || t.short == nil {
		return "", errors.New("alert template: nil")
	}
	tpl := t.long
	if format == alerting.FormatShort {
		tpl = t.short
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
