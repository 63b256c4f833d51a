//go:build js && wasm

package wasm

import (
	"context"
	"sync"
	"syscall/js"

	"github.com/Its-donkey/raidfinder/internal/ui/app"
	"github.com/Its-donkey/raidfinder/internal/ui/client"
	"github.com/Its-donkey/raidfinder/internal/ui/nav"
)

// RunApp bootstraps the raid finder UI against apiBase and blocks until the
// page is hidden for unload. An empty apiBase talks to the origin that served
// the page.
func RunApp(apiBase string) {
	done := make(chan struct{})
	var stop sync.Once
	var handlers []js.Func
	defer func() {
		for _, handler := range handlers {
			handler.Release()
		}
	}()

	page := newDOMPage()
	ui := app.New(page, client.New(apiBase, nil).WithLog(page.Log), app.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	on := func(target js.Value, event string, fn func(this js.Value, args []js.Value)) {
		if !target.Truthy() {
			return
		}
		handler := js.FuncOf(func(this js.Value, args []js.Value) any {
			fn(this, args)
			return nil
		})
		handlers = append(handlers, handler)
		target.Call("addEventListener", event, handler)
	}
	preventDefault := func(args []js.Value) {
		if len(args) > 0 {
			args[0].Call("preventDefault")
		}
	}

	window := page.window
	document := page.document

	// A query change reloads the page, so fragment navigation never refetches.
	on(window, "hashchange", func(js.Value, []js.Value) { go ui.HashChanged() })
	on(window, "pagehide", func(_ js.Value, args []js.Value) {
		if len(args) > 0 && args[0].Get("persisted").Truthy() {
			return
		}
		stop.Do(func() { close(done) })
	})

	for _, id := range []string{app.TopSearchID, app.MidSearchID} {
		id := id
		on(page.element(id), "input", func(js.Value, []js.Value) { ui.Input(id) })
	}

	forms := document.Call("getElementsByClassName", "searchbar_wrapper")
	for i := 0; i < forms.Length(); i++ {
		on(forms.Index(i), "submit", func(_ js.Value, args []js.Value) {
			preventDefault(args)
			go ui.Submit(ctx)
		})
	}

	menuButtons := document.Call("getElementsByClassName", "menu_button")
	if menuButtons.Length() > 0 {
		on(menuButtons.Index(0), "click", func(js.Value, []js.Value) { ui.ToggleMenu() })
	}

	if page.element(nav.MenuID).Truthy() {
		go ui.Load(ctx)
	} else {
		page.Log("error", "navigation menu missing")
	}
	<-done
}
