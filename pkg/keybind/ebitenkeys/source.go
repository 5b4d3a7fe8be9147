// Package ebitenkeys feeds ebiten key presses into the key:down topic.
package ebitenkeys

import (
	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
	"github.com/goliatone/go-settings/pkg/keybind"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Source polls ebiten once per frame for the watched codes.
type Source struct {
	bus   *bus.Bus
	codes []int
	keys  []ebiten.Key
}

// New watches the given virtual-key codes. Codes with no ebiten key are
// ignored.
func New(b *bus.Bus, codes ...int) *Source {
	s := &Source{bus: b}
	for _, code := range codes {
		key, ok := Key(code)
		if !ok {
			continue
		}
		s.codes = append(s.codes, code)
		s.keys = append(s.keys, key)
	}
	return s
}

// Update emits key:down for every watched key pressed this frame. Call it
// from the game's Update.
func (s *Source) Update() int {
	emitted := 0
	for i, key := range s.keys {
		if inpututil.IsKeyJustPressed(key) {
			bus.Emit(s.bus, events.Key, events.KeyDown{Code: s.codes[i]})
			emitted++
		}
	}
	return emitted
}

// Key converts a virtual-key code to an ebiten key.
func Key(code int) (ebiten.Key, bool) {
	switch {
	case code >= keybind.CodeA && code < keybind.CodeA+26:
		return ebiten.KeyA + ebiten.Key(code-keybind.CodeA), true
	case code >= keybind.CodeDigit0 && code < keybind.CodeDigit0+10:
		return ebiten.KeyDigit0 + ebiten.Key(code-keybind.CodeDigit0), true
	case code >= keybind.CodeF1 && code <= keybind.CodeF12:
		return ebiten.KeyF1 + ebiten.Key(code-keybind.CodeF1), true
	}
	switch code {
	case keybind.CodeSpace:
		return ebiten.KeySpace, true
	case keybind.CodeEscape:
		return ebiten.KeyEscape, true
	case keybind.CodeEnter:
		return ebiten.KeyEnter, true
	case keybind.CodeTab:
		return ebiten.KeyTab, true
	case keybind.CodeBackspace:
		return ebiten.KeyBackspace, true
	case keybind.CodeDelete:
		return ebiten.KeyDelete, true
	case keybind.CodeInsert:
		return ebiten.KeyInsert, true
	case keybind.CodeHome:
		return ebiten.KeyHome, true
	case keybind.CodeEnd:
		return ebiten.KeyEnd, true
	case keybind.CodePageUp:
		return ebiten.KeyPageUp, true
	case keybind.CodePageDown:
		return ebiten.KeyPageDown, true
	case keybind.CodeUp:
		return ebiten.KeyArrowUp, true
	case keybind.CodeDown:
		return ebiten.KeyArrowDown, true
	case keybind.CodeLeft:
		return ebiten.KeyArrowLeft, true
	case keybind.CodeRight:
		return ebiten.KeyArrowRight, true
	case keybind.CodeBackquote:
		return ebiten.KeyBackquote, true
	}
	return 0, false
}
