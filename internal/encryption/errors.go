package encryption

import "errors"

var (
	// ErrOpenFailure is returned when an input cannot be opened or read.
	ErrOpenFailure = errors.New("cannot open input")
	// ErrWriteFailure is returned when the message cannot be written out.
	ErrWriteFailure = errors.New("cannot write output")
	// ErrNoRecipients is returned when public-key mode resolves to an
	// empty recipient set.
	ErrNoRecipients = errors.New("no usable recipients")
)
