package notification

import (
	"errors"
	"unicode/utf8"

	"fyne.io/fyne/v2"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

const maxBodyRunes = 200

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, body string) error
}

// FyneNotifier sends notifications through the Fyne app.
type FyneNotifier struct {
	App fyne.App
}

func (n FyneNotifier) Notify(title, body string) error {
	if n.App == nil {
		return errors.New("notification: no app")
	}
	note := fyne.NewNotification(title, Truncate(body))
	fyne.Do(func() { n.App.SendNotification(note) })
	return nil
}

// LogNotifier only logs; used when no desktop session is available.
type LogNotifier struct{}

func (LogNotifier) Notify(title, body string) error {
	logutil.WithComponent("notification").Info().Str("title", title).Msg(Truncate(body))
	return nil
}

// Truncate shortens body to 200 runes, appending "..." when cut.
func Truncate(body string) string {
	if utf8.RuneCountInString(body) <= maxBodyRunes {
		return body
	}
	r := []rune(body)
	return string(r[:maxBodyRunes]) + "..."
}
