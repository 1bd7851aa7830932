//go:build !linux && !windows

package overlay

import "errors"

func newNativeFactory() (Factory, error) {
	return nil, errors.New("no native overlay backend on this platform")
}
