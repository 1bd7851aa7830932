package delivery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

var ErrDelivery = errors.New("delivery failed")

const clipboardNotice = "Screenshot taken and copied to clipboard"

type Kind int

const (
	File Kind = iota
	Clipboard
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Clipboard:
		return "clipboard"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Destination selects exactly one sink for a capture.
type Destination struct {
	Kind Kind
	Path string
}

func ToFile(path string) Destination { return Destination{Kind: File, Path: path} }

func ToClipboard() Destination { return Destination{Kind: Clipboard} }

// FromSave maps the boolean selector of the command surface.
func FromSave(save bool, path string) Destination {
	if save {
		return ToFile(path)
	}
	return ToClipboard()
}

type FileSink interface {
	WriteImage(path string, img image.Image) error
}

type ClipboardSink interface {
	SetImage(img image.Image) error
}

type Notifier interface {
	Notify(title, body string) error
}

type Router struct {
	Files     FileSink
	Clipboard ClipboardSink
	Notifier  Notifier
}

func NewRouter(files FileSink, cb ClipboardSink, n Notifier) *Router {
	return &Router{Files: files, Clipboard: cb, Notifier: n}
}

func logger() *zerolog.Logger { return logutil.WithComponent("delivery") }

// Deliver hands img to the sink named by dest. An empty file path is a
// successful no-op.
func (r *Router) Deliver(img image.Image, dest Destination) error {
	switch dest.Kind {
	case File:
		if dest.Path == "" {
			logger().Debug().Msg("empty path, nothing written")
			return nil
		}
		files := r.Files
		if files == nil {
			files = DiskSink{}
		}
		if err := files.WriteImage(dest.Path, img); err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrDelivery, dest.Path, err)
		}
		logger().Info().Str("path", dest.Path).Msg("screenshot saved")
		return nil

	case Clipboard:
		if r.Clipboard == nil {
			return fmt.Errorf("%w: no clipboard available", ErrDelivery)
		}
		if err := r.Clipboard.SetImage(img); err != nil {
			return fmt.Errorf("%w: clipboard: %v", ErrDelivery, err)
		}
		logger().Info().Msg("screenshot copied to clipboard")
		if r.Notifier != nil {
			n := r.Notifier
			go func() {
				if err := n.Notify("PresentInk", clipboardNotice); err != nil {
					logger().Warn().Err(err).Msg("notification failed")
				}
			}()
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown destination %v", ErrDelivery, dest.Kind)
	}
}

// DiskSink writes images losslessly, picking the format from the extension:
// .bmp, .tif/.tiff, otherwise PNG. Parent directories are never created.
type DiskSink struct{}

func (DiskSink) WriteImage(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if st, err := os.Stat(dir); err != nil {
		return fmt.Errorf("parent directory: %w", err)
	} else if !st.IsDir() {
		return fmt.Errorf("parent %s is not a directory", dir)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, path, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// Encode writes img to w in the format implied by the file name.
func Encode(w io.Writer, name string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(w, img)
	}
}

// MemoryClipboard keeps the last image set, for tests and headless runs.
type MemoryClipboard struct {
	mu   sync.Mutex
	last image.Image
	sets int
}

func (m *MemoryClipboard) SetImage(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = img
	m.sets++
	return nil
}

func (m *MemoryClipboard) Image() image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *MemoryClipboard) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %v", err)
	}
	return buf.Bytes(), nil
}
