package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "loading", "error", "dashboard", "leads", "lead"}

var funcs = template.FuncMap{
	"counts": usecase.SortedCounts,
	"date": func(ts *entity.Timestamp) string {
		if ts == nil || ts.IsZero() {
			return "-"
		}
		return ts.Format("02 Jan 2006")
	},
	"isoDate": func(ts *entity.Timestamp) string {
		if ts == nil || ts.IsZero() {
			return ""
		}
		return ts.Format("2006-01-02")
	},
	"statusClass": func(status string) string {
		return strings.NewReplacer("-", "", " ", "").Replace(strings.ToLower(status))
	},
}

// Pages holds one parsed template set per page, each wrapped in the layout.
type Pages struct {
	sets map[string]*template.Template
}

func LoadPages() (*Pages, error) {
	p := &Pages{sets: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s page: %w", name, err)
		}
		p.sets[name] = t
	}
	return p, nil
}

type pageData struct {
	Title   string
	Nav     bool
	Active  string
	Founder string
	Error   string
	Refresh int
	Data    any
}

func (p *Pages) render(w http.ResponseWriter, status int, page string, data pageData) error {
	t, ok := p.sets[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(buf.String()))
	return err
}
