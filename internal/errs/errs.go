package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

// Sentinel errors shared by the issuer, reconciler and HTTP layer.
// Lower layers mark their own failures with one of these so callers can
// branch with errors.Is without knowing where the error came from.
var (
	ErrValidation          = cr.New("validation error")
	ErrInvalidAmount       = cr.Mark(cr.New("invalid amount"), ErrValidation)
	ErrDuplicateRequest    = cr.New("duplicate request")
	ErrNotFound            = cr.New("payment request not found")
	ErrStoreUnavailable    = cr.New("ledger store unavailable")
	ErrProviderUnavailable = cr.New("payment provider unavailable")
	ErrUnauthorized        = cr.New("unauthorized")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
