// Package nav derives which panel and nav link are active from the URL hash.
package nav

import "strings"

// DefaultPanel is shown when the hash is empty or names no known panel.
const DefaultPanel = "home"

// Element id prefixes and class names used by the index page.
const (
	LinkPrefix  = "nav_"
	PanelPrefix = "content_"

	LinkClass        = "navlink"
	LinkActiveClass  = "navlink nav_active"
	PanelClass       = "content_container"
	PanelActiveClass = "content_container content_active"
	MenuClass        = "navlinks"
	MenuActiveClass  = "navlinks menu_active"

	// MenuID is the element holding the nav links.
	MenuID = "nav_links"
)

// State is the resolved navigation for one hash value.
type State struct {
	// Requested is the normalized hash as typed.
	Requested string
	// Active is the panel shown; it equals Requested when Known.
	Active string
	Known  bool
}

// Normalize strips the leading '#' and lower-cases the hash. Empty means DefaultPanel.
func Normalize(hash string) string {
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(hash), "#")))
	if h == "" {
		return DefaultPanel
	}
	return h
}

// Resolve picks the active panel for hash out of panels. Unknown hashes fall
// back to DefaultPanel, or the first panel when DefaultPanel is not listed.
func Resolve(hash string, panels []string) State {
	requested := Normalize(hash)
	state := State{Requested: requested}
	fallback := ""
	for _, p := range panels {
		id := strings.ToLower(p)
		if id == requested {
			state.Active = id
			state.Known = true
			return state
		}
		if fallback == "" || id == DefaultPanel {
			fallback = id
		}
	}
	state.Active = fallback
	return state
}

// ElementClass pairs a DOM id with the class it should carry.
type ElementClass struct {
	ID    string
	Class string
}

// View is the class assignment for every nav link, every panel and the menu.
type View struct {
	State  State
	Links  []ElementClass
	Panels []ElementClass
	Menu   string
}

// LinkID is the element id of the nav link for panel.
func LinkID(panel string) string { return LinkPrefix + strings.ToLower(panel) }

// PanelID is the element id of the content container for panel.
func PanelID(panel string) string { return PanelPrefix + strings.ToLower(panel) }

// Build computes the view for a state without touching menu state.
func Build(state State, panels []string, menuOpen bool) View {
	view := View{
		State:  state,
		Links:  make([]ElementClass, 0, len(panels)),
		Panels: make([]ElementClass, 0, len(panels)),
		Menu:   menuClass(menuOpen),
	}
	for _, p := range panels {
		id := strings.ToLower(p)
		link := ElementClass{ID: LinkID(id), Class: LinkClass}
		panel := ElementClass{ID: PanelID(id), Class: PanelClass}
		if id == state.Active {
			link.Class = LinkActiveClass
			panel.Class = PanelActiveClass
		}
		view.Links = append(view.Links, link)
		view.Panels = append(view.Panels, panel)
	}
	return view
}

func menuClass(open bool) string {
	if open {
		return MenuActiveClass
	}
	return MenuClass
}

// Controller owns the panel list and the mobile menu state.
type Controller struct {
	panels   []string
	menuOpen bool
}

// NewController returns a controller for the given panel ids.
func NewController(panels ...string) *Controller {
	normalized := make([]string, 0, len(panels))
	for _, p := range panels {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			normalized = append(normalized, p)
		}
	}
	return &Controller{panels: normalized}
}

// Panels returns the panel ids in page order.
func (c *Controller) Panels() []string {
	return append([]string(nil), c.panels...)
}

// Update collapses an open menu and returns the view for hash.
func (c *Controller) Update(hash string) View {
	c.menuOpen = false
	return Build(Resolve(hash, c.panels), c.panels, false)
}

// ToggleMenu flips the menu and returns the class the menu should carry.
func (c *Controller) ToggleMenu() string {
	c.menuOpen = !c.menuOpen
	return menuClass(c.menuOpen)
}

// MenuOpen reports whether the mobile menu is expanded.
func (c *Controller) MenuOpen() bool { return c.menuOpen }
