package macro

import (
	"errors"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
)

// RobotKeyboard synthesizes input through robotgo. Delay is the pause after
// each typed rune; zero types whole strings at once.
type RobotKeyboard struct {
	mu    sync.Mutex
	Delay time.Duration
}

// NewRobotKeyboard fails when the platform offers no input target.
func NewRobotKeyboard(delay time.Duration) (*RobotKeyboard, error) {
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" {
		return nil, errors.New("keyboard synthesis needs an X display (DISPLAY is not set)")
	}
	return &RobotKeyboard{Delay: delay}, nil
}

func (k *RobotKeyboard) Type(text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.Delay <= 0 {
		robotgo.TypeStr(text)
		return nil
	}
	for _, r := range text {
		robotgo.TypeStr(string(r))
		time.Sleep(k.Delay)
	}
	return nil
}

func (k *RobotKeyboard) Press(key Key) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return robotgo.KeyToggle(string(key), "down")
}

func (k *RobotKeyboard) Release(key Key) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return robotgo.KeyToggle(string(key), "up")
}
