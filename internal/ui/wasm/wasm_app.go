//go:build js && wasm

package wasm

import (
	"net/url"
	"strings"
	"syscall/js"
)

// domPage implements app.Page over the browser document.
type domPage struct {
	window   js.Value
	document js.Value
}

func newDOMPage() *domPage {
	window := js.Global()
	return &domPage{window: window, document: window.Get("document")}
}

func (p *domPage) element(id string) js.Value {
	el := p.document.Call("getElementById", id)
	if !el.Truthy() {
		return js.Value{}
	}
	return el
}

func (p *domPage) location() js.Value {
	return p.window.Get("location")
}

func (p *domPage) Hash() string {
	return p.location().Get("hash").String()
}

func (p *domPage) SetHash(hash string) {
	p.location().Set("hash", hash)
}

func (p *domPage) Query(key string) string {
	values, err := url.ParseQuery(strings.TrimPrefix(p.location().Get("search").String(), "?"))
	if err != nil {
		return ""
	}
	return values.Get(key)
}

// SetQuery writes location.search, which reloads the page with the hash kept.
func (p *domPage) SetQuery(key, value string) {
	values := url.Values{}
	values.Set(key, value)
	p.location().Set("search", "?"+values.Encode())
}

func (p *domPage) Value(id string) string {
	el := p.element(id)
	if !el.Truthy() {
		return ""
	}
	return el.Get("value").String()
}

func (p *domPage) SetValue(id, value string) {
	if el := p.element(id); el.Truthy() {
		el.Set("value", value)
	}
}

func (p *domPage) SetClass(id, class string) {
	if el := p.element(id); el.Truthy() {
		el.Set("className", class)
	}
}

func (p *domPage) SetInner(id, markup string) {
	if el := p.element(id); el.Truthy() {
		el.Set("innerHTML", markup)
	}
}

func (p *domPage) AppendInner(id, markup string) {
	if el := p.element(id); el.Truthy() {
		el.Call("insertAdjacentHTML", "beforeend", markup)
	}
}

func (p *domPage) Log(level, message string) {
	console := p.window.Get("console")
	if !console.Truthy() {
		return
	}
	method := "log"
	switch level {
	case "error":
		method = "error"
	case "warn":
		method = "warn"
	case "debug":
		method = "debug"
	}
	console.Call(method, message)
}
