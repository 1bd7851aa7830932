package tray

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

//go:embed icons/*.png
var assets embed.FS

const TemplateIcon = "icons/iconTemplate.png"

var colorIcons = map[string]string{
	"#ff0000": "icons/icon-red.png",
	"red":     "icons/icon-red.png",
	"#0000ff": "icons/icon-blue.png",
	"blue":    "icons/icon-blue.png",
	"#00ff00": "icons/icon-green.png",
	"green":   "icons/icon-green.png",
	"#ffff00": "icons/icon-yellow.png",
	"yellow":  "icons/icon-yellow.png",
	"#ff00ff": "icons/icon-pink.png",
	"black":   "icons/icon-pink.png",
	"#ffa500": "icons/icon-orange.png",
	"orange":  "icons/icon-orange.png",
}

// IconPath maps a pen color to its tray icon. Unknown colors, and any color
// while not drawing, use the template icon.
func IconPath(color string, drawing bool) string {
	if !drawing {
		return TemplateIcon
	}
	if p, ok := colorIcons[strings.ToLower(strings.TrimSpace(color))]; ok {
		return p
	}
	return TemplateIcon
}

// IconCache loads icon assets once per path.
type IconCache struct {
	fsys fs.FS

	mu    sync.Mutex
	icons map[string][]byte
}

// NewIconCache serves the embedded icons when fsys is nil.
func NewIconCache(fsys fs.FS) *IconCache {
	if fsys == nil {
		fsys = assets
	}
	return &IconCache{fsys: fsys, icons: make(map[string][]byte)}
}

func (c *IconCache) Load(path string) ([]byte, error) {
	c.mu.Lock()
	data, ok := c.icons[path]
	c.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := fs.ReadFile(c.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load icon %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.icons[path]; ok {
		return cached, nil
	}
	c.icons[path] = data
	return data, nil
}

func (c *IconCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.icons)
}

// Setter shows an icon in the system tray.
type Setter interface {
	SetIcon(name string, data []byte) error
}

type Tray struct {
	Icons  *IconCache
	Setter Setter

	mu      sync.Mutex
	current string
}

func New(icons *IconCache, s Setter) *Tray {
	return &Tray{Icons: icons, Setter: s}
}

// ChangeTrayIcon swaps the tray icon for the pen color.
func (t *Tray) ChangeTrayIcon(color string, drawing bool) error {
	path := IconPath(color, drawing)
	data, err := t.Icons.Load(path)
	if err != nil {
		return err
	}
	if t.Setter != nil {
		if err := t.Setter.SetIcon(path, data); err != nil {
			return fmt.Errorf("failed to set tray icon: %w", err)
		}
	}
	t.mu.Lock()
	t.current = path
	t.mu.Unlock()
	logutil.WithComponent("tray").Debug().Str("icon", path).Msg("tray icon changed")
	return nil
}

// Current returns the asset path of the icon last set.
func (t *Tray) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
