package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUserNotFound is returned when no account has the requested email.
var ErrUserNotFound = errors.New("user not found")

// AdminClient provides access to the identity provider's admin API (Supabase Auth) for
// user management. Used by the seed command, never by request handling.
type AdminClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewAdminClient requires the service role key (SUPABASE_KEY) for elevated permissions.
func NewAdminClient(baseURL, serviceKey string) *AdminClient {
	return &AdminClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateUserRequest is the payload for creating a new user
type CreateUserRequest struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// User is an account as returned by the admin API.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload any, out any, okStatus ...int) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	ok := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateUser creates a confirmed user (no email verification) and returns its id.
func (c *AdminClient) CreateUser(ctx context.Context, email, password string) (string, error) {
	var user User
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users",
		CreateUserRequest{Email: email, Password: password, EmailConfirm: true},
		&user, http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// FindUserByEmail returns ErrUserNotFound when no account matches.
func (c *AdminClient) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var list listUsersResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users", nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	for _, u := range list.Users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// DeleteUserByEmail is idempotent: a missing user is not an error.
func (c *AdminClient) DeleteUserByEmail(ctx context.Context, email string) error {
	user, err := c.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+user.ID, nil, nil,
		http.StatusOK, http.StatusNoContent)
}
