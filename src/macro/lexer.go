package macro

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	Literal Kind = iota
	KeyPress
	Pause
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "Literal"
	case KeyPress:
		return "KeyPress"
	case Pause:
		return "Pause"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Key names a synthetic key. Values match robotgo key names.
type Key string

const (
	KeyLeft  Key = "left"
	KeyRight Key = "right"
	KeyUp    Key = "up"
	KeyDown  Key = "down"
	KeyEnter Key = "enter"
)

var vocabulary = map[string]Key{
	"left":  KeyLeft,
	"right": KeyRight,
	"up":    KeyUp,
	"down":  KeyDown,
	"enter": KeyEnter,
}

type Token struct {
	Kind  Kind
	Text  string
	Key   Key
	Pause time.Duration
}

func LiteralToken(s string) Token      { return Token{Kind: Literal, Text: s} }
func KeyToken(k Key) Token             { return Token{Kind: KeyPress, Key: k} }
func PauseToken(d time.Duration) Token { return Token{Kind: Pause, Pause: d} }

func (t Token) String() string {
	switch t.Kind {
	case Literal:
		return fmt.Sprintf("Literal(%q)", t.Text)
	case KeyPress:
		return fmt.Sprintf("KeyPress(%s)", t.Key)
	case Pause:
		return fmt.Sprintf("Pause(%s)", t.Pause)
	default:
		return t.Kind.String()
	}
}

// Lex splits text into literal runs, key presses and pauses. Bracketed
// content outside the vocabulary stays literal, brackets included. An
// unterminated '[' makes the rest of the input one final literal.
func Lex(text string) []Token {
	var tokens []Token
	rest := text
	for rest != "" {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			tokens = append(tokens, LiteralToken(rest))
			break
		}
		if open > 0 {
			tokens = append(tokens, LiteralToken(rest[:open]))
			rest = rest[open:]
		}

		end := strings.IndexByte(rest, ']')
		if end < 0 {
			tokens = append(tokens, LiteralToken(rest))
			break
		}

		tag := rest[:end+1]
		if tok, ok := command(rest[1:end]); ok {
			tokens = append(tokens, tok)
		} else {
			tokens = append(tokens, LiteralToken(tag))
		}
		rest = rest[end+1:]
	}
	return tokens
}

func command(body string) (Token, bool) {
	lower := strings.ToLower(body)
	if k, ok := vocabulary[lower]; ok {
		return KeyToken(k), true
	}
	if n, ok := strings.CutPrefix(lower, "pause:"); ok && n != "" && isDigits(n) {
		secs, err := strconv.ParseUint(n, 10, 32)
		if err != nil {
			return Token{}, false
		}
		return PauseToken(time.Duration(secs) * time.Second), true
	}
	return Token{}, false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
