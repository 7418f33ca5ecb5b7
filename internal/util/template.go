package util

import (
	"bytes"
	"strings"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"default": func(def any, val any) any {
		if val == nil || val == "" {
			return def
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
}

// MustTemplate parses a template at init time and panics on error.
func MustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text))
}

// Execute renders a pre-parsed template to a string.
func Execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
