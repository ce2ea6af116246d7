package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRemote       = errors.New("remote error")
	ErrTransient    = errors.New("transient failure")
)

// Wrap builds an error message that includes service context while tagging it
// with the provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, service, operation, message string, err error) error {
	detail := buildDetail(service, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// MarkerForStatus classifies an HTTP status code returned by a collaborator.
func MarkerForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 404:
		return ErrNotFound
	case status == 429 || status >= 500:
		return ErrTransient
	default:
		return ErrRemote
	}
}

// Redact shortens a credential to a log-safe form keeping the last four characters.
func Redact(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	runes := []rune(token)
	if len(runes) <= 4 {
		return "…"
	}
	return "…" + string(runes[len(runes)-4:])
}

func buildDetail(service, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{service, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
