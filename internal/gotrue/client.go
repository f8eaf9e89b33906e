package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vmpanel/internal/config"
)

var (
	// ErrUnavailable means the auth service could not be reached at all.
	ErrUnavailable = errors.New("authentication service unavailable")
	// ErrInvalidCredentials means the auth service rejected the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRejected means the auth service refused the request for a stated reason.
	ErrRejected = errors.New("request rejected by authentication service")
)

// Client talks to a GoTrue-compatible authentication service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.GoTrueConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

// TokenUser is the user object embedded in GoTrue token responses.
type TokenUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenResponse is a GoTrue token grant response.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	User         TokenUser `json:"user"`
}

// SignupResponse is a GoTrue signup response. Depending on the autoconfirm
// setting the user may come inline or nested.
type SignupResponse struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	User  TokenUser `json:"user"`
}

// UserID returns the subject id regardless of response shape.
func (r SignupResponse) UserID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.User.ID
}

// Login exchanges email/password credentials for a token bundle
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	body := map[string]string{"email": email, "password": password}

	resp, err := c.post(ctx, "/token?grant_type=password", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidCredentials
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &token, nil
}

// Signup registers a new account with the auth service
func (c *Client) Signup(ctx context.Context, email, password string) (*SignupResponse, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     map[string]interface{}{},
	}

	resp, err := c.post(ctx, "/signup", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: %s", ErrRejected, errorMessage(resp))
	}

	var signup SignupResponse
	if err := json.NewDecoder(resp.Body).Decode(&signup); err != nil {
		return nil, fmt.Errorf("decoding signup response: %w", err)
	}
	return &signup, nil
}

// RefreshToken exchanges a refresh token for a new token bundle
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body := map[string]string{"refresh_token": refreshToken}

	resp, err := c.post(ctx, "/token?grant_type=refresh_token", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidCredentials
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &token, nil
}

// ChangePassword updates the password of the account owning the access token
func (c *Client) ChangePassword(ctx context.Context, accessToken, newPassword string) error {
	body := map[string]string{"password": newPassword}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/user", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: password change failed", ErrRejected)
	}
	return nil
}

// RequestPasswordReset asks the auth service to send a recovery email.
// GoTrue answers 200 whether or not the account exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	resp, err := c.post(ctx, "/recover", map[string]string{"email": email})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Health reports whether the auth service answers its health probe
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func errorMessage(resp *http.Response) string {
	var body struct {
		Msg          string `json:"msg"`
		Message      string `json:"message"`
		ErrorMessage string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		switch {
		case body.Msg != "":
			return body.Msg
		case body.Message != "":
			return body.Message
		case body.ErrorMessage != "":
			return body.ErrorMessage
		}
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
