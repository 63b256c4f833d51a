// Package app wires navigation, the backend client and the renderer to a
// page. It holds no browser types so it runs the same under tests and WASM.
package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/Its-donkey/raidfinder/internal/ui/client"
	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"github.com/Its-donkey/raidfinder/internal/ui/nav"
	"github.com/Its-donkey/raidfinder/internal/ui/render"
	"golang.org/x/text/language"
)

// Element ids on the index page.
const (
	TopSearchID    = "topsearch"
	MidSearchID    = "midsearch"
	ResultsLabelID = "nav_results"
	ResultsID      = "content_results"
	StatusID       = "results_status"

	// QueryKey carries the searched username in the URL.
	QueryKey = "id"
	// ResultsHash is navigated to after a successful validation.
	ResultsHash = "#Results"
	// HomeHash is written when the page loads without a hash.
	HomeHash = "#Home"
)

// Search input classes.
const (
	InputClass        = "searchbar"
	InputInvalidClass = "searchbar invalid"
)

// DefaultPanels are the content sections of the index page.
var DefaultPanels = []string{"home", "results", "about"}

// Page is the slice of the DOM the app drives.
type Page interface {
	Hash() string
	SetHash(hash string)
	Query(key string) string
	SetQuery(key, value string)
	Value(id string) string
	SetValue(id, value string)
	SetClass(id, class string)
	SetInner(id, markup string)
	AppendInner(id, markup string)
	Log(level, message string)
}

// Backend is what the app needs from the backend client.
type Backend interface {
	Validate(ctx context.Context, username string) (model.UserInfo, error)
	FetchStreams(ctx context.Context, username string) (model.Ranked, error)
}

// Options configures an App. Zero values pick the defaults.
type Options struct {
	Panels   []string
	Renderer *render.Renderer
}

// App reacts to page events. Each method blocks until its network calls
// finish; callers on a UI thread should run them on a goroutine.
type App struct {
	mu       sync.Mutex
	page     Page
	backend  Backend
	nav      *nav.Controller
	renderer *render.Renderer
	session  client.Session
	inputs   []string
	query    string // last ?id= value handed to Fetch
}

// New builds an App over page and backend.
func New(page Page, backend Backend, opts Options) *App {
	panels := opts.Panels
	if len(panels) == 0 {
		panels = DefaultPanels
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.New(language.English)
	}
	return &App{
		page:     page,
		backend:  backend,
		nav:      nav.NewController(panels...),
		renderer: renderer,
		inputs:   []string{TopSearchID, MidSearchID},
	}
}

// Load applies the hash view and, for a deep link carrying ?id=, fills the
// inputs and the results label and fetches the results.
func (a *App) Load(ctx context.Context) {
	a.HashChanged()
	a.QueryChanged(ctx)
}

// HashChanged re-evaluates which panel and nav link are active. An empty
// hash becomes ResultsHash when ?id= is set and HomeHash otherwise.
func (a *App) HashChanged() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.page.Hash() == "" {
		if strings.TrimSpace(a.page.Query(QueryKey)) != "" {
			a.page.SetHash(ResultsHash)
		} else {
			a.page.SetHash(HomeHash)
		}
	}
	a.applyView(a.nav.Update(a.page.Hash()))
}

func (a *App) applyView(view nav.View) {
	for _, link := range view.Links {
		a.page.SetClass(link.ID, link.Class)
	}
	for _, panel := range view.Panels {
		a.page.SetClass(panel.ID, panel.Class)
	}
	a.page.SetClass(nav.MenuID, view.Menu)
	if !view.State.Known {
		a.page.Log("warn", fmt.Sprintf("unknown panel %q, showing %q", view.State.Requested, view.State.Active))
	}
}

// QueryChanged fetches results for the current ?id= value, if any. A value
// already fetched is not fetched again.
func (a *App) QueryChanged(ctx context.Context) {
	a.mu.Lock()
	username := strings.TrimSpace(a.page.Query(QueryKey))
	if username == "" || username == a.query {
		a.mu.Unlock()
		return
	}
	a.query = username
	for _, id := range a.inputs {
		a.page.SetValue(id, username)
	}
	a.page.SetInner(ResultsLabelID, html.EscapeString(strings.ToUpper(username)))
	a.mu.Unlock()

	a.Fetch(ctx, username)
}

// Input copies the value of the edited search box into the others.
func (a *App) Input(sourceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	value := a.page.Value(sourceID)
	for _, id := range a.inputs {
		if id != sourceID {
			a.page.SetValue(id, value)
		}
	}
}

// ToggleMenu expands or collapses the mobile menu.
func (a *App) ToggleMenu() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.page.SetClass(nav.MenuID, a.nav.ToggleMenu())
}

// Submit validates the typed username. A valid name moves to the Results
// panel and writes ?id=, which drives the fetch; anything else is reported
// without touching the hash.
func (a *App) Submit(ctx context.Context) {
	a.mu.Lock()
	username := strings.TrimSpace(a.page.Value(TopSearchID))
	a.mu.Unlock()

	_, err := a.backend.Validate(ctx, username)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.report(err, username)
		return
	}
	for _, id := range a.inputs {
		a.page.SetClass(id, InputClass)
	}
	a.page.SetInner(StatusID, "")
	a.page.SetHash(ResultsHash)
	a.page.SetQuery(QueryKey, username)
}

// Fetch clears the results and renders the live channels for username.
// A result that arrives after a newer search started is dropped.
func (a *App) Fetch(ctx context.Context, username string) {
	ctx, tok := a.session.Begin(ctx)
	defer a.session.End(tok)

	a.mu.Lock()
	a.page.SetInner(ResultsID, "")
	a.page.SetInner(StatusID, "Searching "+html.EscapeString(username)+"…")
	a.mu.Unlock()

	records, err := a.backend.FetchStreams(ctx, username)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.session.Current(tok) {
		a.page.Log("debug", fmt.Sprintf("dropping stale results for %q", username))
		return
	}
	if err != nil {
		a.report(err, username)
		return
	}
	a.page.SetInner(StatusID, "")
	a.page.AppendInner(ResultsID, a.renderer.Render(records))
}

func (a *App) report(err error, username string) {
	a.page.Log("error", err.Error())
	a.page.SetInner(StatusID, html.EscapeString(StatusMessage(err, username)))
	if errors.Is(err, client.ErrNotFound) {
		for _, id := range a.inputs {
			a.page.SetClass(id, InputInvalidClass)
		}
	}
}

// StatusMessage is the line shown to the user for a failed search.
func StatusMessage(err error, username string) string {
	switch client.KindOf(err) {
	case client.KindNotFound:
		return fmt.Sprintf("No channel named %q was found.", username)
	case client.KindEmptyResult:
		return fmt.Sprintf("Nobody in %s's community is live right now.", username)
	case client.KindNetworkFailure:
		return "The raid finder service could not be reached. Try again shortly."
	default:
		return "Something went wrong."
	}
}
