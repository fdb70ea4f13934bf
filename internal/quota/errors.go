package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials means no credential document could be loaded
	// from any store.
	ErrNoCredentials = errors.New("quota: no credentials found, run `claude` to authenticate")

	// ErrNoRefreshToken means the cached credential cannot be renewed.
	ErrNoRefreshToken = errors.New("quota: no refresh token, re-authenticate with `claude`")

	// ErrAuthRequired means the usage API rejected the access token.
	ErrAuthRequired = errors.New("quota: authentication expired, re-authenticate with `claude`")
)

// TokenRefreshError is a non-2xx response from the token endpoint.
type TokenRefreshError struct {
	Status int
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("quota: token refresh failed (HTTP %d)", e.Status)
}

// HTTPError is any other non-2xx response from the usage API.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("quota: usage API error (HTTP %d)", e.Status)
}
