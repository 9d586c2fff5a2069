package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: false
storage:
  database_path: ./kotae.db
embedding:
  provider: mock
  dimensions: 32
generation:
  provider: mock
vector:
  store: memory
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeConfig(t, t.TempDir())
		cfg, resolved, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if resolved != path {
			t.Errorf("resolved = %q", resolved)
		}
		if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 32 {
			t.Errorf("cfg.Embedding = %+v", cfg.Embedding)
		}
		if cfg.Vector.Store != "memory" {
			t.Errorf("cfg.Vector.Store = %q", cfg.Vector.Store)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestAskViaHTTP(t *testing.T) {
	t.Run("decodes response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/ask" {
				t.Errorf("path = %q", r.URL.Path)
			}
			var req models.AskRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(models.AskResponse{
				Question: req.Question,
				Answer:   "forty-two",
			})
		}))
		defer srv.Close()

		resp, err := askViaHTTP(srv.URL, &models.AskRequest{Question: "the big one?"})
		if err != nil {
			t.Fatalf("askViaHTTP: %v", err)
		}
		if resp.Answer != "forty-two" || resp.Question != "the big one?" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("surfaces server error message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "question cannot be empty"})
		}))
		defer srv.Close()

		_, err := askViaHTTP(srv.URL, &models.AskRequest{})
		if err == nil || err.Error() != "question cannot be empty" {
			t.Errorf("err = %v", err)
		}
	})
}
