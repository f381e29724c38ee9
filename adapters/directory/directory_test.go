package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quietpage/reflectd/config"
	"github.com/quietpage/reflectd/ports"
)

func TestUserIDByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("email"); got != "alice@example.com" {
			t.Errorf("email query = %q", got)
		}
		w.Write([]byte(`{"users":[
			{"id":"user-other","email":"alice.backup@example.com"},
			{"id":"user-alice","email":"Alice@Example.com"}
		]}`))
	}))
	defer srv.Close()

	d := NewHTTPDirectory(HTTPConfig{BaseURL: srv.URL, ServiceKey: "service-key"})
	id, err := d.UserIDByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("UserIDByEmail: %v", err)
	}
	if id != "user-alice" {
		t.Errorf("id = %q, want the exact email match", id)
	}
}

func TestUserIDByEmailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[]}`))
	}))
	defer srv.Close()

	d := NewHTTPDirectory(HTTPConfig{BaseURL: srv.URL, ServiceKey: "service-key"})
	if _, err := d.UserIDByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserIDByEmailUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewHTTPDirectory(HTTPConfig{BaseURL: srv.URL, ServiceKey: "bad-key"})
	_, err := d.UserIDByEmail(context.Background(), "alice@example.com")
	if err == nil || errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want an upstream error distinct from ErrNotFound", err)
	}
}

func TestNewDirectoryModes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DirectoryConfig
		wantErr bool
	}{
		{"http", config.DirectoryConfig{Mode: "http", BaseURL: "https://auth.example.com", ServiceKey: "k"}, false},
		{"http without key", config.DirectoryConfig{Mode: "http", BaseURL: "https://auth.example.com"}, true},
		{"none", config.DirectoryConfig{Mode: "none"}, false},
		{"empty defaults to none", config.DirectoryConfig{}, false},
		{"unknown", config.DirectoryConfig{Mode: "ldap"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDirectory(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDirectory = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
