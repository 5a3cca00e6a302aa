package sdrig

import (
	"errors"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/dbc"
	"github.com/sdrig/sdrig-go/pkg/transport"
)

// Sentinel errors surfaced at the facade boundary (spec.md §7), following
// the teacher's flat errors.go style: most of these simply re-wrap the
// package-level sentinels the component packages already define, so a
// caller never needs to import internal/devbase or pkg/transport just to
// check an error kind.
var (
	// ErrUnknownDevice is returned when an operation names a MAC the
	// facade has no connected device for.
	ErrUnknownDevice = errors.New("sdrig: unknown device")

	// ErrAlreadyConnected is returned by a connect_* call when the MAC is
	// already connected under a different device kind.
	ErrAlreadyConnected = errors.New("sdrig: MAC already connected as a different device kind")

	// ErrNotConnected is returned by Client methods that require an open
	// transport.
	ErrNotConnected = errors.New("sdrig: client is not connected")

	// ErrOutOfRange is returned (wrapped) by device-engine setters before
	// any shadow write.
	ErrOutOfRange = devbase.ErrOutOfRange

	// ErrEncodeUnknownMessage is returned (wrapped) when a send names a
	// message the DBC catalog does not declare.
	ErrEncodeUnknownMessage = dbc.ErrEncodeUnknownMessage

	// ErrMacUnavailable is returned (wrapped) by New when the interface MAC
	// cannot be resolved.
	ErrMacUnavailable = transport.ErrMacUnavailable

	// ErrReceiverShutdownTimeout is returned by Stop when the receive loop
	// does not exit within its shutdown bound.
	ErrReceiverShutdownTimeout = transport.ErrReceiverShutdownTimeout
)
