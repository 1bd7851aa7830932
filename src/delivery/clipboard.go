package delivery

import (
	"image"
	"sync"

	"golang.design/x/clipboard"
)

// SystemClipboard sets the OS clipboard image. Writes are serialized so
// parallel deliveries cannot interleave.
type SystemClipboard struct {
	writeMu sync.Mutex
}

// NewSystemClipboard initializes the platform clipboard. Failure here is
// fatal for the resident.
func NewSystemClipboard() (*SystemClipboard, error) {
	if err := clipboard.Init(); err != nil {
		return nil, err
	}
	return &SystemClipboard{}, nil
}

func (c *SystemClipboard) SetImage(img image.Image) error {
	data, err := encodePNG(img)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}
