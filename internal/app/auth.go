package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dev-tams/newsdrop/internal/storage"
	"github.com/dev-tams/newsdrop/internal/storage/rmapi"
)

var ErrAuthenticationRequired = errors.New("authentication required")

// EnsureAuthenticated checks stores that need device registration. With a
// token it attempts one registration; without one it fails with
// ErrAuthenticationRequired.
func EnsureAuthenticated(ctx context.Context, st storage.Store, token string, out io.Writer) error {
	a, ok := st.(storage.Authenticator)
	if !ok {
		return nil
	}

	authed, err := a.Authenticated(ctx)
	if err != nil {
		return fmt.Errorf("check authentication: %w", err)
	}
	if authed {
		return nil
	}

	fmt.Fprintf(out, "auth: not authenticated store=%s\n", st.Name())
	if token == "" {
		return fmt.Errorf("%w: pass --register-device-token with a code from %s", ErrAuthenticationRequired, rmapi.ConnectURL)
	}

	fmt.Fprintf(out, "auth: registering device store=%s\n", st.Name())
	if err := a.Register(ctx, token); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if authed, err = a.Authenticated(ctx); err != nil {
		return fmt.Errorf("check authentication: %w", err)
	}
	if !authed {
		return fmt.Errorf("%w: still not authenticated after registration", ErrAuthenticationRequired)
	}
	fmt.Fprintf(out, "auth: registered store=%s\n", st.Name())
	return nil
}
