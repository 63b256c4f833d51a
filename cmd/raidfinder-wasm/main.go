//go:build js && wasm

package main

import "github.com/Its-donkey/raidfinder/internal/ui/wasm"

func main() {
	wasm.RunApp("")
}
