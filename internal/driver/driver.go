// Package driver defines the boundary to the layer that performs the
// actual protocol calls into a device driver. The engine treats every
// entry point as fallible and never assumes a call succeeded without
// checking the returned code.
package driver

import (
	"image"

	"github.com/twainkit/twainkit/internal/twain"
)

// Entry is the single calling convention of the driver-interface layer.
// dest is nil for manager-addressed triplets (no open destination) and
// the opened source identity otherwise. data points to the typed payload
// matching the argument type, or is nil for operations without one.
type Entry interface {
	Call(dest *twain.Identity, dg twain.DataGroup, dat twain.DataArgType, msg twain.Message, data any) twain.ReturnCode
}

// ThreadMarshaler is implemented by drivers that must run their callbacks
// on a host-owned thread. The engine only registers the hook at session
// construction; it never invokes it itself.
type ThreadMarshaler interface {
	SetRunOnThread(run func(func()))
}

// NativeImage is the opaque platform handle returned by a native-mechanism
// transfer. The holder must Release it before the image's processing
// returns, on every exit path.
type NativeImage interface {
	Image() (image.Image, error)
	Release()
}
