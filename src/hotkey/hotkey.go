package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

// Binding associates a combination such as "Alt+Shift+D" with a callback.
type Binding struct {
	Name     string
	Combo    string
	Callback func()
}

type keyState struct {
	name     string
	rawcodes []uint16
	keycodes []uint16
	pressed  bool
}

func (k *keyState) matches(rawcode, keycode uint16) bool {
	for _, c := range k.keycodes {
		if keycode != 0 && keycode == c {
			return true
		}
	}
	for _, c := range k.rawcodes {
		if rawcode == c {
			return true
		}
	}
	return false
}

type combo struct {
	binding Binding
	keys    []keyState
}

// Matcher tracks pressed keys for a set of bindings and reports which
// combinations complete on each key press.
type Matcher struct {
	mu     sync.Mutex
	combos []*combo
}

// NewMatcher parses bindings. Bindings whose keys cannot all be mapped are
// rejected with an error naming them; the valid ones are still returned.
func NewMatcher(bindings []Binding) (*Matcher, error) {
	m := &Matcher{}
	var bad []string
	for _, b := range bindings {
		if strings.TrimSpace(b.Combo) == "" {
			continue
		}
		c := &combo{binding: b}
		ok := true
		for _, name := range parseHotkey(b.Combo) {
			ks := keyState{name: name, rawcodes: keyNameToRawcodes(name), keycodes: keyNameToKeycodes(name)}
			if len(ks.rawcodes) == 0 && len(ks.keycodes) == 0 {
				ok = false
				break
			}
			c.keys = append(c.keys, ks)
		}
		if !ok || len(c.keys) == 0 {
			bad = append(bad, fmt.Sprintf("%s=%q", b.Name, b.Combo))
			continue
		}
		m.combos = append(m.combos, c)
	}
	if len(bad) > 0 {
		return m, fmt.Errorf("cannot map hotkeys: %s", strings.Join(bad, ", "))
	}
	return m, nil
}

// Len returns the number of usable bindings.
func (m *Matcher) Len() int { return len(m.combos) }

// KeyDown marks the key pressed and returns the bindings it completes.
// A completed combination resets so holding the keys fires once.
func (m *Matcher) KeyDown(rawcode, keycode uint16) []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	var fired []Binding
	for _, c := range m.combos {
		for i := range c.keys {
			if c.keys[i].matches(rawcode, keycode) {
				c.keys[i].pressed = true
			}
		}
		all := true
		for i := range c.keys {
			if !c.keys[i].pressed {
				all = false
				break
			}
		}
		if all {
			for i := range c.keys {
				c.keys[i].pressed = false
			}
			fired = append(fired, c.binding)
		}
	}
	return fired
}

// KeyUp marks the key released.
func (m *Matcher) KeyUp(rawcode, keycode uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.combos {
		for i := range c.keys {
			if c.keys[i].matches(rawcode, keycode) {
				c.keys[i].pressed = false
			}
		}
	}
}

// Listen starts the global keyboard hook and invokes binding callbacks on
// the hook goroutine. Callbacks must hand work off quickly. The returned
// stop function ends the hook. An error alongside a working stop function
// names bindings that were skipped.
func Listen(bindings []Binding) (stop func(), err error) {
	logger := logutil.WithComponent("hotkey")
	m, err := NewMatcher(bindings)
	if err != nil {
		logger.Error().Err(err).Msg("some hotkeys are unusable")
	}
	if m.Len() == 0 {
		if err == nil {
			err = errors.New("no hotkeys configured")
		}
		return func() {}, err
	}
	for _, c := range m.combos {
		logger.Info().Str("binding", c.binding.Name).Str("combo", c.binding.Combo).Msg("hotkey registered")
	}

	evChan := gohook.Start()
	if evChan == nil {
		return func() {}, errors.New("gohook.Start returned nil channel")
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logutil.WithComponent("hotkey").Error().Interface("panic", r).Msg("hook goroutine crashed")
			}
		}()
		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				for _, b := range m.KeyDown(ev.Rawcode, ev.Keycode) {
					logger.Debug().Str("binding", b.Name).Msg("hotkey activated")
					if b.Callback != nil {
						b.Callback()
					}
				}
			case gohook.KeyUp:
				m.KeyUp(ev.Rawcode, ev.Keycode)
			}
		}
		logger.Debug().Msg("event channel closed")
	}()

	var once sync.Once
	return func() { once.Do(gohook.End) }, err
}

// keyNameToKeycodes maps a key name to the portable hook keycodes, with
// the right-hand variant for modifiers.
func keyNameToKeycodes(keyName string) []uint16 {
	var codes []uint16
	if c, ok := gohook.Keycode[keyName]; ok {
		codes = append(codes, c)
	}
	switch keyName {
	case "ctrl", "alt", "shift", "cmd":
		if c, ok := gohook.Keycode["r"+keyName]; ok {
			codes = append(codes, c)
		}
	}
	return codes
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	// Convert to lowercase and split by +
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl":
			keys = append(keys, "ctrl")
		case "alt":
			keys = append(keys, "alt")
		case "shift":
			keys = append(keys, "shift")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			// Regular key
			keys = append(keys, part)
		}
	}

	return keys
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes
// Returns a slice of rawcodes (e.g., both left and right variants for modifiers)
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	switch keyName {
	// Modifier keys - return both left and right variants
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU (MENU = Alt)
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "win", "cmd", "super":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN (Windows/Super/Cmd key)

	// Letter keys (A-Z) - VK codes 0x41-0x5A (65-90)
	case "a":
		return []uint16{65}
	case "b":
		return []uint16{66}
	case "c":
		return []uint16{67}
	case "d":
		return []uint16{68}
	case "e":
		return []uint16{69}
	case "f":
		return []uint16{70}
	case "g":
		return []uint16{71}
	case "h":
		return []uint16{72}
	case "i":
		return []uint16{73}
	case "j":
		return []uint16{74}
	case "k":
		return []uint16{75}
	case "l":
		return []uint16{76}
	case "m":
		return []uint16{77}
	case "n":
		return []uint16{78}
	case "o":
		return []uint16{79}
	case "p":
		return []uint16{80}
	case "q":
		return []uint16{81}
	case "r":
		return []uint16{82}
	case "s":
		return []uint16{83}
	case "t":
		return []uint16{84}
	case "u":
		return []uint16{85}
	case "v":
		return []uint16{86}
	case "w":
		return []uint16{87}
	case "x":
		return []uint16{88}
	case "y":
		return []uint16{89}
	case "z":
		return []uint16{90}

	// Number keys (0-9) - VK codes 0x30-0x39 (48-57)
	case "0":
		return []uint16{48}
	case "1":
		return []uint16{49}
	case "2":
		return []uint16{50}
	case "3":
		return []uint16{51}
	case "4":
		return []uint16{52}
	case "5":
		return []uint16{53}
	case "6":
		return []uint16{54}
	case "7":
		return []uint16{55}
	case "8":
		return []uint16{56}
	case "9":
		return []uint16{57}

	// Function keys (F1-F24)
	case "f1":
		return []uint16{112} // VK_F1
	case "f2":
		return []uint16{113} // VK_F2
	case "f3":
		return []uint16{114} // VK_F3
	case "f4":
		return []uint16{115} // VK_F4
	case "f5":
		return []uint16{116} // VK_F5
	case "f6":
		return []uint16{117} // VK_F6
	case "f7":
		return []uint16{118} // VK_F7
	case "f8":
		return []uint16{119} // VK_F8
	case "f9":
		return []uint16{120} // VK_F9
	case "f10":
		return []uint16{121} // VK_F10
	case "f11":
		return []uint16{122} // VK_F11
	case "f12":
		return []uint16{123} // VK_F12
	case "f13":
		return []uint16{124} // VK_F13
	case "f14":
		return []uint16{125} // VK_F14
	case "f15":
		return []uint16{126} // VK_F15
	case "f16":
		return []uint16{127} // VK_F16
	case "f17":
		return []uint16{128} // VK_F17
	case "f18":
		return []uint16{129} // VK_F18
	case "f19":
		return []uint16{130} // VK_F19
	case "f20":
		return []uint16{131} // VK_F20
	case "f21":
		return []uint16{132} // VK_F21
	case "f22":
		return []uint16{133} // VK_F22
	case "f23":
		return []uint16{134} // VK_F23
	case "f24":
		return []uint16{135} // VK_F24

	// Common special keys
	case "space":
		return []uint16{32} // VK_SPACE
	case "enter", "return":
		return []uint16{13} // VK_RETURN
	case "esc", "escape":
		return []uint16{27} // VK_ESCAPE
	case "tab":
		return []uint16{9} // VK_TAB
	case "backspace":
		return []uint16{8} // VK_BACK
	case "delete", "del":
		return []uint16{46} // VK_DELETE
	case "insert", "ins":
		return []uint16{45} // VK_INSERT
	case "home":
		return []uint16{36} // VK_HOME
	case "end":
		return []uint16{35} // VK_END
	case "pageup", "pgup":
		return []uint16{33} // VK_PRIOR
	case "pagedown", "pgdn":
		return []uint16{34} // VK_NEXT

	// Arrow keys
	case "left":
		return []uint16{37} // VK_LEFT
	case "up":
		return []uint16{38} // VK_UP
	case "right":
		return []uint16{39} // VK_RIGHT
	case "down":
		return []uint16{40} // VK_DOWN

	default:
		return nil
	}
}
