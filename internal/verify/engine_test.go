package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"securecode/internal/types"
)

func TestRemoteEngine_Refutation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if req.Artifact == "" {
			t.Error("expected the artifact in the request")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(verifyResponse{
			Verdict:        string(types.VerdictRefuted),
			Counterexample: `f(x = "' OR 1=1")`,
		})
	}))
	defer srv.Close()

	engine := NewRemoteEngine(srv.URL, 5*time.Second)
	out, err := engine.Verify(context.Background(), "def f(x):\n    pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Verdict != types.VerdictRefuted {
		t.Errorf("expected refuted, got %s", out.Verdict)
	}
	if out.Counterexample == "" {
		t.Error("expected the counterexample carried through")
	}
}

func TestRemoteEngine_UnknownVerdictIsInconclusive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(verifyResponse{Verdict: "maybe"})
	}))
	defer srv.Close()

	engine := NewRemoteEngine(srv.URL, 5*time.Second)
	out, err := engine.Verify(context.Background(), "artifact")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Verdict != types.VerdictInconclusive {
		t.Errorf("an unknown verdict must degrade to inconclusive, got %s", out.Verdict)
	}
}

func TestRemoteEngine_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := NewRemoteEngine(srv.URL, 5*time.Second)
	if _, err := engine.Verify(context.Background(), "artifact"); err == nil {
		t.Fatal("expected an error for a failing service")
	}
}

func TestExecEngine_CleanExitIsVerified(t *testing.T) {
	engine := NewExecEngine("true")
	out, err := engine.Verify(context.Background(), "def f():\n    pass\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Verdict != types.VerdictVerified {
		t.Errorf("expected verified for a clean exit, got %s", out.Verdict)
	}
}

func TestExecEngine_AbnormalExitIsInconclusive(t *testing.T) {
	engine := NewExecEngine("false")
	out, err := engine.Verify(context.Background(), "def f():\n    pass\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Verdict != types.VerdictInconclusive {
		t.Errorf("expected inconclusive for an abnormal exit, got %s", out.Verdict)
	}
}

func TestExecEngine_TimeoutIsInconclusive(t *testing.T) {
	script := filepath.Join(t.TempDir(), "slow.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	engine := NewExecEngine(script)
	out, err := engine.Verify(ctx, "def f():\n    pass\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Verdict != types.VerdictInconclusive {
		t.Errorf("expected inconclusive on timeout, got %s", out.Verdict)
	}
	if !strings.Contains(out.Detail, "timed out") {
		t.Errorf("expected the timeout recorded, got %q", out.Detail)
	}
}
