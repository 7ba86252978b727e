// Package resolver expands short task-id prefixes into full task ids.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResultScanner finds stored results by id prefix. *taskqueue.ResultBackend satisfies it.
type ResultScanner interface {
	ScanResults(ctx context.Context, prefix string) ([]string, error)
}

// ResolveTaskID resolves a short ID prefix to a full task id.
//
// A full UUID is returned unchanged without a lookup, since a task may not
// have a stored result yet. A prefix must match exactly one stored result.
func ResolveTaskID(ctx context.Context, scanner ResultScanner, shortID string) (string, error) {
	if _, err := uuid.Parse(shortID); err == nil && len(shortID) == 36 {
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	if strings.ContainsAny(shortID, "*?[]\\") {
		return "", fmt.Errorf("short ID contains pattern characters: %s", shortID)
	}

	matches, err := scanner.ScanResults(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for task: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no stored results matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no tasks found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple stored results matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d tasks", e.ShortID, len(e.Matches))
}

// Suggestions lists the matching ids (up to 10, then "...and N more").
func (e *AmbiguousError) Suggestions() []string {
	shown := e.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}

	out := make([]string, 0, len(shown)+1)
	out = append(out, shown...)
	if len(e.Matches) > 10 {
		out = append(out, fmt.Sprintf("...and %d more", len(e.Matches)-10))
	}
	return out
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}

// Ensure the result backend can be used directly.
var _ ResultScanner = (*taskqueue.ResultBackend)(nil)
