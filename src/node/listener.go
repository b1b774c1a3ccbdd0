package node

import (
	"github.com/mosaicnetworks/murmur/src/wire"
)

// ObjectListener receives every new object before it is stored. Returning an
// error rejects the object: it is neither stored nor relayed.
type ObjectListener interface {
	Receive(obj *wire.Object) error
}

// CustomCommandHandler answers custom requests. A nil response closes the
// connection without answering.
type CustomCommandHandler interface {
	Handle(req *wire.Custom) *wire.Custom
}

// NopListener accepts every object.
type NopListener struct{}

// Receive implements ObjectListener.
func (NopListener) Receive(*wire.Object) error { return nil }

// UnsupportedCustomHandler answers every custom request with an error.
type UnsupportedCustomHandler struct{}

// Handle implements CustomCommandHandler.
func (UnsupportedCustomHandler) Handle(req *wire.Custom) *wire.Custom {
	return wire.NewCustomError("unsupported command " + req.Name)
}
