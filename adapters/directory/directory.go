// Package directory provides auth-provider user directory adapters.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quietpage/reflectd/ports"
)

// HTTPConfig holds configuration for the admin user-directory client.
type HTTPConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

// HTTPDirectory implements ports.Directory against the auth provider's admin
// API. The service key grants admin scope; it must never appear in logs.
type HTTPDirectory struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPDirectory creates a new admin user-directory client.
func NewHTTPDirectory(config HTTPConfig) *HTTPDirectory {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type listUsersResponse struct {
	Users []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"users"`
}

// UserIDByEmail looks an email up in the auth provider's user directory.
func (d *HTTPDirectory) UserIDByEmail(ctx context.Context, email string) (string, error) {
	endpoint := d.config.BaseURL + "/admin/users?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.config.ServiceKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call user directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("user directory returned %d: %s", resp.StatusCode, snippet)
	}

	var out listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	// Some providers treat the email filter as a prefix match; compare exactly.
	for _, u := range out.Users {
		if strings.EqualFold(u.Email, email) {
			return u.ID, nil
		}
	}
	return "", ports.ErrNotFound
}

// Ensure interface compliance.
var _ ports.Directory = (*HTTPDirectory)(nil)
