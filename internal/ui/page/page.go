// Package page renders the index document on the server so deep links land on
// the right panel, with results filled in, before the WASM app starts.
package page

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Its-donkey/raidfinder/internal/ui/app"
	"github.com/Its-donkey/raidfinder/internal/ui/nav"
)

// TemplateName is the template executed for the index page.
const TemplateName = "index"

// Panel is one nav entry as the template sees it.
type Panel struct {
	ID    string
	Label string
}

// Data feeds the index template.
type Data struct {
	Title        string
	Description  string
	StaticPrefix string
	Year         int
	Panels       []Panel
}

// State is the per-request search state applied over the rendered template.
type State struct {
	// Hash is the panel to show; empty picks Results when Query is set.
	Hash  string
	Query string
	// Results is a pre-rendered card fragment for the Results panel.
	Results string
	// Status fills the status line.
	Status string
}

// Renderer executes the index template and applies search state to it.
type Renderer struct {
	tmpl   *template.Template
	panels []string
	data   Data
}

// Load parses index.tmpl from dir.
func Load(dir string, panels []string) (*Renderer, error) {
	tmpl, err := template.New(TemplateName).ParseFiles(filepath.Join(dir, "index.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}
	return New(tmpl, panels), nil
}

// New wraps a parsed template defining TemplateName.
func New(tmpl *template.Template, panels []string) *Renderer {
	if len(panels) == 0 {
		panels = app.DefaultPanels
	}
	data := Data{
		Title:        "Raid Finder",
		Description:  "Find live channels your community already follows.",
		StaticPrefix: "/static",
		Year:         time.Now().Year(),
	}
	for _, p := range panels {
		id := strings.ToLower(p)
		data.Panels = append(data.Panels, Panel{ID: id, Label: label(id)})
	}
	return &Renderer{tmpl: tmpl, panels: panels, data: data}
}

func label(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// Panels returns the panel ids the renderer was built with.
func (r *Renderer) Panels() []string {
	return append([]string(nil), r.panels...)
}

// Render writes the index page for state to w.
func (r *Renderer) Render(w io.Writer, state State) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, TemplateName, r.data); err != nil {
		return fmt.Errorf("execute index template: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return fmt.Errorf("parse rendered index: %w", err)
	}

	Apply(doc, r.view(state), state)

	out, err := doc.Html()
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func (r *Renderer) view(state State) nav.View {
	hash := state.Hash
	if hash == "" && strings.TrimSpace(state.Query) != "" {
		hash = app.ResultsHash
	}
	return nav.Build(nav.Resolve(hash, r.panels), r.panels, false)
}

// Apply sets classes from view and the search state on doc.
func Apply(doc *goquery.Document, view nav.View, state State) {
	for _, link := range view.Links {
		doc.Find("#"+link.ID).SetAttr("class", link.Class)
	}
	for _, panel := range view.Panels {
		doc.Find("#"+panel.ID).SetAttr("class", panel.Class)
	}
	doc.Find("#"+nav.MenuID).SetAttr("class", view.Menu)

	query := strings.TrimSpace(state.Query)
	if query != "" {
		for _, id := range []string{app.TopSearchID, app.MidSearchID} {
			doc.Find("#"+id).SetAttr("value", query)
		}
		doc.Find("#" + app.ResultsLabelID).SetText(strings.ToUpper(query))
	}
	if state.Results != "" {
		doc.Find("#" + app.ResultsID).SetHtml(state.Results)
	}
	if state.Status != "" {
		doc.Find("#" + app.StatusID).SetText(state.Status)
	}
}
