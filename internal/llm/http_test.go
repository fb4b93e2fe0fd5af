package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Generate(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model carried through, got %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]string{{"text": "generated output"}},
		})
	})

	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Model: "test-model", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	out, err := client.Generate(context.Background(), "prompt", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "generated output" {
		t.Errorf("expected completion text, got %q", out)
	}
}

func TestHTTPClient_ServerErrorIsNotUnavailable(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "prompt too long"},
		})
	})

	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Generate(context.Background(), "prompt", DefaultOptions())
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("an HTTP-level rejection is a bad generation, not unavailability")
	}
}

func TestHTTPClient_UnreachableHostIsUnavailable(t *testing.T) {
	client, err := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1", Model: "m", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Generate(context.Background(), "prompt", DefaultOptions())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPClient_EmptyCompletionFails(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []map[string]string{}})
	})

	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Generate(context.Background(), "prompt", DefaultOptions()); err == nil {
		t.Fatal("expected an error for an empty completion")
	}
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPClient(HTTPConfig{}); err == nil {
		t.Fatal("expected an error without a base URL")
	}
}
