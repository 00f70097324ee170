package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/shared"
)

const minPasswordLength = 6

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type profileResponse struct {
	Valid bool         `json:"valid"`
	User  *models.User `json:"user"`
}

// Login authenticates with username/password and returns the identity plus
// its bearer credential. The credential is not installed on the client;
// session ownership decides that.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, "", fmt.Errorf("%w: username and password are required", shared.ErrInvalidInput)
	}

	var resp authResponse
	if err := c.postJSON(ctx, "/api/login", credentialsBody{Username: username, Password: password}, &resp); err != nil {
		return nil, "", err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, "", fmt.Errorf("%w: server returned no credential", shared.ErrAuthFailed)
	}

	return resp.User, resp.Token, nil
}

// Register creates an account and returns the identity plus its credential.
// Password rules are enforced client-side before anything hits the network.
func (c *Client) Register(ctx context.Context, username, password, confirm string) (*models.User, string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(confirm) == "" {
		return nil, "", fmt.Errorf("%w: all fields are required", shared.ErrInvalidInput)
	}
	if password != confirm {
		return nil, "", fmt.Errorf("%w: passwords do not match", shared.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, "", fmt.Errorf("%w: password must have at least %d characters", shared.ErrInvalidInput, minPasswordLength)
	}

	var resp authResponse
	if err := c.postJSON(ctx, "/api/register", credentialsBody{Username: username, Password: password}, &resp); err != nil {
		return nil, "", err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, "", fmt.Errorf("%w: server returned no credential", shared.ErrAuthFailed)
	}

	return resp.User, resp.Token, nil
}

// Profile validates the installed credential against the backend and returns
// the identity it belongs to. A response marked invalid maps to
// [shared.ErrTokenRejected] so callers can distinguish a dead credential from
// a transport failure.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	if c.Token() == "" {
		return nil, shared.ErrNotAuthenticated
	}

	var resp profileResponse
	if err := c.getJSON(ctx, "/api/profile", &resp); err != nil {
		return nil, err
	}
	if !resp.Valid || resp.User == nil {
		return nil, shared.ErrTokenRejected
	}

	return resp.User, nil
}
