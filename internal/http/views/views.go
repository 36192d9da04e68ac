// Package views holds the server-rendered pages. Every page template renders
// the shared header and footer partials.
package views

import (
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"firstName": func(name string) string {
		first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
		return first
	},
	"firstDate": func(dates []time.Time) string {
		if len(dates) == 0 {
			return "TBA"
		}
		return dates[0].Format("January 2006")
	},
}

// Load parses the embedded page templates.
func Load() (*template.Template, error) {
	return template.New("views").Funcs(funcs).ParseFS(files, "templates/*.html")
}
