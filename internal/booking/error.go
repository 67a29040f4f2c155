package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/tablebook/internal/calendar"
)

// Kind is the stable machine-readable error code surfaced to callers.
type Kind string

const (
	KindNotAccepting      Kind = "restaurant_not_accepting_reservations"
	KindClosedDay         Kind = "closed_on_selected_day"
	KindOutsideHours      Kind = "outside_operating_hours"
	KindWithinCutoff      Kind = "within_same_day_cutoff"
	KindOutsideWindow     Kind = "outside_advance_window"
	KindPartySize         Kind = "party_size_exceeds_limit"
	KindNoAvailability    Kind = "no_availability"
	KindInvalidTransition Kind = "invalid_status_transition"
	KindConfiguration     Kind = "configuration_error"
	KindNotFound          Kind = "not_found"
)

// Error is a refused booking operation.
type Error struct {
	Kind    Kind
	Message string
	// SuggestedTime is set for no_availability when another slot that day
	// can still take the party.
	SuggestedTime *calendar.ClockTime

	err error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: cause}
}

// KindOf extracts the kind of a booking error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a booking error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// InputError is structurally invalid input, keyed by field.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func IsInputError(err error) bool {
	var e *InputError
	return errors.As(err, &e)
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) merge(m map[string]string) {
	for k, v := range m {
		f.add(k, v)
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &InputError{Fields: f}
}
