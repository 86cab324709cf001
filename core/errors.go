package core

import "errors"

// Code identifies a class of entropy source failure
type Code uint8

const (
	CodeNone Code = iota
	CodeTimingOverflow
	CodeCapacitorOutOfRange
	CodeHealthTestExhausted
	CodeNotSeeded

	// CodeUnknown marks an error that did not come from this package
	CodeUnknown Code = 0xFF
)

// RandErrorBase is the first error number reported through randomness
// provider callbacks. It sits in the custom range above 1<<31.
const RandErrorBase uint32 = 0x80000000 + 510132368

// Error is the typed failure returned by sampling, seeding and fill calls
type Error struct {
	Code   Code
	Detail string
}

var (
	ErrTimingOverflow      = &Error{Code: CodeTimingOverflow}
	ErrCapacitorOutOfRange = &Error{Code: CodeCapacitorOutOfRange}
	ErrCapacitorTooSmall   = &Error{Code: CodeCapacitorOutOfRange, Detail: "too small or missing"}
	ErrCapacitorTooLarge   = &Error{Code: CodeCapacitorOutOfRange, Detail: "too large"}
	ErrHealthTestExhausted = &Error{Code: CodeHealthTestExhausted}
	ErrNotSeeded           = &Error{Code: CodeNotSeeded}
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "ok"
	case CodeTimingOverflow:
		return "hardware timing overflow"
	case CodeCapacitorOutOfRange:
		return "capacitor out of range"
	case CodeHealthTestExhausted:
		return "health test exhausted"
	case CodeNotSeeded:
		return "not seeded"
	}
	return "unknown error " + Itoa(int(c))
}

// Name returns the identifier used for c in the firmware data dictionary
func (c Code) Name() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeTimingOverflow:
		return "timing_overflow"
	case CodeCapacitorOutOfRange:
		return "capacitor_out_of_range"
	case CodeHealthTestExhausted:
		return "health_test_exhausted"
	case CodeNotSeeded:
		return "not_seeded"
	}
	return "unknown"
}

// RandError maps the code into the randomness provider error range.
// CodeNone maps to 0.
func (c Code) RandError() uint32 {
	if c == CodeNone {
		return 0
	}
	return RandErrorBase + uint32(c)
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "caprand: " + e.Code.String()
	}
	return "caprand: " + e.Code.String() + ": " + e.Detail
}

// Is matches errors with the same code. A target without detail matches any
// detail, so ErrCapacitorOutOfRange matches both too small and too large.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code != e.Code {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

// CodeOf extracts the code carried by err, CodeNone for nil
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
