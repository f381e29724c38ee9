package titles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPGeneratorGenerate(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `"A Quiet Morning Walk"`}},
			},
		})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(HTTPConfig{BaseURL: srv.URL, APIKey: "key-1", Model: "gemini-2.5-flash"})

	gen, err := g.Generate(context.Background(), "I walked to the lake. Reach me at alice@example.com.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Title != "A Quiet Morning Walk" {
		t.Errorf("Title = %q, want quotes stripped", gen.Title)
	}
	if gen.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q", gen.Model)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	// The email must be redacted before the summary is sent upstream.
	user := gotBody.Messages[len(gotBody.Messages)-1].Content
	if strings.Contains(user, "alice@example.com") {
		t.Errorf("prompt leaked PII: %q", user)
	}
	if !strings.Contains(user, "[REDACTED]") {
		t.Errorf("prompt missing redaction placeholder: %q", user)
	}
}

func TestHTTPGeneratorUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewHTTPGenerator(HTTPConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := g.Generate(context.Background(), "summary"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestHTTPGeneratorEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(HTTPConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := g.Generate(context.Background(), "summary"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}
