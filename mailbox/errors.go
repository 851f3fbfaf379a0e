package mailbox

import "errors"

var (
	// ErrInvalidArgument reports a nil or empty buffer, or a size the buffer cannot hold
	ErrInvalidArgument = errors.New("mailbox: invalid argument")
	// ErrArgumentOutOfRange reports a size outside what the receive bank supports
	ErrArgumentOutOfRange = errors.New("mailbox: argument out of range")
	// ErrRequestTimeout reports a bounded wait that spent its whole budget
	ErrRequestTimeout = errors.New("mailbox: request timeout")
)

// Status is the numeric form of a transport result, used where errors cross a wire
type Status uint8

const (
	StatusSuccess         Status = 0
	StatusFail            Status = 1
	StatusInvalidArgument Status = 2
	StatusOutOfRange      Status = 3
	StatusTimeout         Status = 4
)

// StatusOf classifies an error returned by this package
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrArgumentOutOfRange):
		return StatusOutOfRange
	case errors.Is(err, ErrRequestTimeout):
		return StatusTimeout
	}
	return StatusFail
}

// Err returns the sentinel error for a status, nil for success
func (s Status) Err() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusInvalidArgument:
		return ErrInvalidArgument
	case StatusOutOfRange:
		return ErrArgumentOutOfRange
	case StatusTimeout:
		return ErrRequestTimeout
	}
	return errFail
}

var errFail = errors.New("mailbox: operation failed")

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidArgument:
		return "invalid-argument"
	case StatusOutOfRange:
		return "out-of-range"
	case StatusTimeout:
		return "timeout"
	}
	return "fail"
}
