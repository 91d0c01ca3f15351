package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuitableFormat is returned when every download strategy failed.
	ErrNoSuitableFormat = errors.New("no suitable format could be downloaded")

	// ErrOutputNotFound means the tool reported success but no file could be located.
	ErrOutputNotFound = errors.New("downloaded file not found")

	ErrNoQualitySelected   = errors.New("no quality selected")
	ErrSelectionSuperseded = errors.New("selection superseded by a newer request")
	ErrNoInput             = errors.New("no input received")
	ErrRequestCancelled    = errors.New("cancelled")

	ErrEncode     = errors.New("encode failed")
	ErrItemFailed = errors.New("item failed")

	// ErrSessionBusy is returned when a conversation already has a run in flight.
	ErrSessionBusy = errors.New("a request is already running for this chat")

	ErrNotAuthorized = errors.New("not authorized")
)

// EncodeError wraps a failed transcoder invocation together with its output tail.
type EncodeError struct {
	Mode   string
	Output string
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s encode: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("%s encode: %v: %s", e.Mode, e.Err, e.Output)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// ItemError records why a single batch item failed.
type ItemError struct {
	Index int
	URL   string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

func (e *ItemError) Is(target error) bool { return target == ErrItemFailed }
