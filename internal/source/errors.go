package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/metrics"
)

// Error classes every adapter maps its failures onto.
var (
	// ErrTransient marks timeouts, connection failures, 429 and 5xx responses.
	// Callers may retry these.
	ErrTransient = errors.New("source: transient upstream failure")
	// ErrNotFound marks a missing title or page. Terminal for the call.
	ErrNotFound = errors.New("source: not found")
	// ErrParse marks a response whose structure did not match expectations.
	ErrParse = errors.New("source: unexpected response structure")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op     string // "search", "details", "page", ...
	Source domain.Source
	Target string // query text, id or page, if applicable
	Err    error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Source, e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches operation context to err. A nil err stays nil.
func Wrap(op string, src domain.Source, target string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Source: src, Target: target, Err: err}
}

// Parsef builds an ErrParse error with a description of what was wrong.
func Parsef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

// ClassifyStatus maps an HTTP status code onto the error classes.
// 2xx returns nil.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code == http.StatusTooEarly:
		return fmt.Errorf("%w: status %d", ErrTransient, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, code)
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// IsTransient reports whether err is worth retrying: an ErrTransient, a
// network error, or a per-attempt deadline.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsParse reports whether err is an ErrParse.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// SkipItem records a list item that could not be parsed. Parsing of the rest
// of the list continues.
func SkipItem(logger *slog.Logger, src domain.Source, err error) {
	metrics.ParseSkips.WithLabelValues(src.String()).Inc()
	logger.Debug("skipping unparsable item", "source", src.String(), "error", err)
}
