package permission

import (
	"sync"

	"github.com/ebitengine/purego"

	"github.com/erwinvanhunen/presentink/src/logutil"
)

const coreGraphicsPath = "/System/Library/Frameworks/CoreGraphics.framework/CoreGraphics"

// screenCapture calls CGPreflightScreenCaptureAccess and
// CGRequestScreenCaptureAccess without cgo.
type screenCapture struct {
	once      sync.Once
	loadErr   error
	preflight func() bool
	request   func() bool
}

func New() Capability { return &screenCapture{} }

func (s *screenCapture) load() error {
	s.once.Do(func() {
		lib, err := purego.Dlopen(coreGraphicsPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			s.loadErr = err
			logutil.WithComponent("permission").Error().Err(err).Msg("failed to load CoreGraphics")
			return
		}
		purego.RegisterLibFunc(&s.preflight, lib, "CGPreflightScreenCaptureAccess")
		purego.RegisterLibFunc(&s.request, lib, "CGRequestScreenCaptureAccess")
	})
	return s.loadErr
}

func (s *screenCapture) HasPermission() bool {
	if s.load() != nil {
		return false
	}
	return s.preflight()
}

func (s *screenCapture) RequestPermission() bool {
	if s.load() != nil {
		return false
	}
	return s.request()
}
