// Package keybind maps key bindings to virtual-key codes and toggles the
// overlay when the bound key goes down.
package keybind

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Virtual-key codes for the keys a binding may name.
const (
	CodeBackspace = 8
	CodeTab       = 9
	CodeEnter     = 13
	CodeEscape    = 27
	CodeSpace     = 32
	CodePageUp    = 33
	CodePageDown  = 34
	CodeEnd       = 35
	CodeHome      = 36
	CodeLeft      = 37
	CodeUp        = 38
	CodeRight     = 39
	CodeDown      = 40
	CodeInsert    = 45
	CodeDelete    = 46
	CodeDigit0    = 48
	CodeA         = 65
	CodeF1        = 112
	CodeF7        = 118
	CodeF12       = 123
	CodeBackquote = 192
)

// DefaultBinding opens the settings overlay.
const DefaultBinding = "F7"

// ErrUnknownKey is returned for bindings that name no supported key.
var ErrUnknownKey = errors.New("keybind: unknown key")

var named = map[string]int{
	"SPACE":     CodeSpace,
	"ESCAPE":    CodeEscape,
	"ENTER":     CodeEnter,
	"TAB":       CodeTab,
	"BACKSPACE": CodeBackspace,
	"DELETE":    CodeDelete,
	"INSERT":    CodeInsert,
	"HOME":      CodeHome,
	"END":       CodeEnd,
	"PAGEUP":    CodePageUp,
	"PAGEDOWN":  CodePageDown,
	"UP":        CodeUp,
	"DOWN":      CodeDown,
	"LEFT":      CodeLeft,
	"RIGHT":     CodeRight,
	"BACKQUOTE": CodeBackquote,
}

var aliases = map[string]string{
	"SPACEBAR": "SPACE",
	"ESC":      "ESCAPE",
	"RETURN":   "ENTER",
	"DEL":      "DELETE",
	"INS":      "INSERT",
	"PGUP":     "PAGEUP",
	"PGDN":     "PAGEDOWN",
	"`":        "BACKQUOTE",
	"GRAVE":    "BACKQUOTE",
}

// Canonicalize normalizes a binding name: letters and digits, F1-F12 and the
// named keys. An empty binding is valid and means unbound.
func Canonicalize(binding string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(binding))
	if upper == "" {
		return "", true
	}
	if len(upper) == 1 {
		ch := upper[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return upper, true
		}
	}
	if strings.HasPrefix(upper, "F") && len(upper) > 1 {
		if n, err := strconv.Atoi(upper[1:]); err == nil && n >= 1 && n <= 12 {
			return "F" + strconv.Itoa(n), true
		}
	}
	if alias, ok := aliases[upper]; ok {
		upper = alias
	}
	if _, ok := named[upper]; ok {
		return upper, true
	}
	return "", false
}

// ParseBinding returns the virtual-key code for binding. An empty binding
// yields 0.
func ParseBinding(binding string) (int, error) {
	canonical, ok := Canonicalize(binding)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, binding)
	}
	if canonical == "" {
		return 0, nil
	}
	if len(canonical) == 1 {
		ch := canonical[0]
		if ch >= '0' && ch <= '9' {
			return CodeDigit0 + int(ch-'0'), nil
		}
		return CodeA + int(ch-'A'), nil
	}
	if code, ok := named[canonical]; ok {
		return code, nil
	}
	n, _ := strconv.Atoi(canonical[1:])
	return CodeF1 + n - 1, nil
}

// Name returns the canonical binding for a virtual-key code.
func Name(code int) (string, bool) {
	switch {
	case code >= CodeA && code < CodeA+26:
		return string(rune('A' + code - CodeA)), true
	case code >= CodeDigit0 && code < CodeDigit0+10:
		return string(rune('0' + code - CodeDigit0)), true
	case code >= CodeF1 && code <= CodeF12:
		return "F" + strconv.Itoa(code-CodeF1+1), true
	}
	for name, c := range named {
		if c == code {
			return name, true
		}
	}
	return "", false
}
