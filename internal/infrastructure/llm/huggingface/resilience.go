package huggingface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from the inference router.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "hf status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("hf %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("hf %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// classifyBackendError maps a backend failure onto a domain error kind:
// ErrTemporary for an unavailable or warming-up model (503, network failure,
// open breaker), ErrUnauthorized for a rejected token, nil for everything
// else so the backend message reaches the caller. Status codes win; message
// patterns only apply when no status code is available or it is not decisive.
func classifyBackendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || resilience.IsCircuitOpen(err) {
		return domain.ErrTemporary
	}
	if domain.IsKind(err, domain.ErrUnauthorized) {
		return domain.ErrUnauthorized
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return domain.ErrUnauthorized
		case statusErr.StatusCode == http.StatusServiceUnavailable:
			return domain.ErrTemporary
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrTemporary
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "503"), strings.Contains(strings.ToLower(msg), "loading"):
		return domain.ErrTemporary
	case strings.Contains(msg, "Authorization"):
		return domain.ErrUnauthorized
	}
	return nil
}

func classifyHFError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	switch classifyBackendError(err) {
	case domain.ErrTemporary:
		class := resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			class.RetryAfter = statusErr.RetryAfter
		}
		return class
	case domain.ErrUnauthorized:
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	// Transient statuses without the advisory kind are still worth retrying.
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		retryable := isRetryableHTTPStatus(statusErr.StatusCode)
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: retryable,
			RetryAfter:    statusErr.RetryAfter,
		}
	}
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func wrapBackendError(operation string, err error) error {
	if err == nil {
		return nil
	}
	kind := classifyBackendError(err)
	if kind == nil || domain.IsKind(err, kind) {
		return err
	}
	return domain.WrapError(kind, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
