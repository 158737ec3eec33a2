package gitsource

import (
	"errors"
	"strings"

	"github.com/brotherdetjr/deltabanana/faults"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

func classifyRemoteError(message string, err error) error {
	lower := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired) ||
		strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "permission denied"):
		return faults.NewTypedError(faults.AuthError, message, err)
	case strings.Contains(lower, "non-fast-forward") ||
		strings.Contains(lower, "fetch first") ||
		strings.Contains(lower, "rejected"):
		return faults.NewTypedError(faults.ConflictError, message, err)
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "tls") ||
		strings.Contains(lower, "connection") ||
		strings.Contains(lower, "network"):
		return faults.NewTypedError(faults.TransportError, message, err)
	default:
		return faults.NewTypedError(faults.InternalError, message, err)
	}
}

func notLoadedError(message string) error {
	return faults.NewTypedError(faults.NotLoadedError, message, nil)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}
