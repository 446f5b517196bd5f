// Package identity defines the identity-provider boundary: who the current
// browser session belongs to, and how sessions are opened and closed.
//
// A Provider instance holds one browser session's provider-side credentials
// (a cookie jar, an OAuth token). Implementations live in sub-packages.
package identity

import (
	"context"

	"github.com/sakif/hackhub/internal/model"
)

// Provider is an external identity provider.
//
// Errors follow the apperror vocabulary:
//   - CurrentSession returns an error wrapping apperror.ErrNotAuthenticated
//     when there is no session.
//   - CreateSession returns an error wrapping apperror.ErrInvalidCredentials
//     when the provider rejects the credentials; its message is shown to the
//     user as is.
//   - DeleteSession is idempotent. Its error is informational only.
type Provider interface {
	CurrentSession(ctx context.Context) (model.Identity, error)
	CreateSession(ctx context.Context, email, password string) error
	DeleteSession(ctx context.Context) error
}

// Factory creates a Provider for a new browser session.
type Factory func() (Provider, error)
