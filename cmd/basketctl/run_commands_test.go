package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

func TestJQFilterMatching(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		jqFilter    string
		expectMatch bool
		expectErr   bool
	}{
		{
			name:        "status match",
			doc:         `{"status": "succeeded"}`,
			jqFilter:    `.status == "succeeded"`,
			expectMatch: true,
		},
		{
			name:        "status mismatch",
			doc:         `{"status": "partial"}`,
			jqFilter:    `.status == "succeeded"`,
			expectMatch: false,
		},
		{
			name:        "numeric threshold match",
			doc:         `{"total_usd": 500}`,
			jqFilter:    `.total_usd > 100`,
			expectMatch: true,
		},
		{
			name:        "numeric threshold mismatch",
			doc:         `{"total_usd": 50}`,
			jqFilter:    `.total_usd > 100`,
			expectMatch: false,
		},
		{
			name:        "contains match",
			doc:         `{"basket_id": "mag7", "mode": "once"}`,
			jqFilter:    `. | contains({basket_id: "mag7"})`,
			expectMatch: true,
		},
		{
			name:        "missing field is falsy",
			doc:         `{"mode": "once"}`,
			jqFilter:    `.nonexistent`,
			expectMatch: false,
		},
		{
			name:      "type error propagates",
			doc:       `{"status": "succeeded"}`,
			jqFilter:  `.status + 1`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, err := compileJQFilters([]string{tt.jqFilter})
			if err != nil {
				t.Fatalf("failed to compile jq filter: %v", err)
			}

			var doc interface{}
			if err := json.Unmarshal([]byte(tt.doc), &doc); err != nil {
				t.Fatalf("failed to parse test document: %v", err)
			}

			match, err := matchesJQValue(filters, doc)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected jq filter error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if match != tt.expectMatch {
				t.Errorf("expected match=%v, got match=%v", tt.expectMatch, match)
			}
		})
	}
}

func TestJQFilterMatching_AllMustMatch(t *testing.T) {
	filters, err := compileJQFilters([]string{
		`.status == "succeeded"`,
		`.total_usd >= 100`,
	})
	if err != nil {
		t.Fatalf("failed to compile jq filters: %v", err)
	}

	match, err := matchesJQValue(filters, map[string]interface{}{
		"status":    "succeeded",
		"total_usd": 250.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !match {
		t.Error("expected document matching both filters to pass")
	}

	match, err = matchesJQValue(filters, map[string]interface{}{
		"status":    "succeeded",
		"total_usd": 50.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match {
		t.Error("expected document failing one filter to be rejected")
	}
}

func TestCompileJQFilters_ParseError(t *testing.T) {
	_, err := compileJQFilters([]string{`.status ==`})
	if err == nil {
		t.Fatal("expected parse error for malformed filter")
	}
}

func TestIsTruthy(t *testing.T) {
	if isTruthy(nil) {
		t.Error("nil should be falsy")
	}
	if isTruthy(false) {
		t.Error("false should be falsy")
	}
	if !isTruthy(true) {
		t.Error("true should be truthy")
	}
	if !isTruthy(0.0) {
		t.Error("zero is truthy under jq semantics")
	}
	if !isTruthy("") {
		t.Error("empty string is truthy under jq semantics")
	}
}

func TestListRunsCommand(t *testing.T) {
	os.Unsetenv("BASKETD_SERVER_URL")

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/api/v1/runs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("wallet"); got != "test-wallet" {
			t.Errorf("expected wallet=test-wallet, got: %s", got)
		}

		response := map[string]interface{}{
			"runs": []map[string]interface{}{
				{
					"run_id":     "test-wallet-1",
					"wallet":     "test-wallet",
					"basket_id":  "mag7",
					"mode":       "once",
					"total_usd":  700.0,
					"total":      7,
					"status":     "succeeded",
					"created_at": now.Format(time.RFC3339),
				},
				{
					"run_id":     "test-wallet-2",
					"wallet":     "test-wallet",
					"basket_id":  "ai-chips",
					"mode":       "once",
					"total_usd":  100.0,
					"total":      4,
					"status":     "partial",
					"created_at": now.Format(time.RFC3339),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	app := testApp()
	err := app.Run([]string{"test", "--server-url", server.URL, "--json",
		"runs", "list", "--wallet", "test-wallet"})

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var buf bytes.Buffer
	buf.ReadFrom(r)

	var runs []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &runs); err != nil {
		t.Fatalf("expected JSON array output, got: %s", buf.String())
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got: %d", len(runs))
	}
	if runs[0]["run_id"] != "test-wallet-1" {
		t.Errorf("expected first run test-wallet-1, got: %v", runs[0]["run_id"])
	}
}

func TestListRunsCommand_JQFilter(t *testing.T) {
	os.Unsetenv("BASKETD_SERVER_URL")

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"runs": []map[string]interface{}{
				{
					"run_id": "w-1", "wallet": "w", "mode": "once",
					"total_usd": 700.0, "total": 7, "status": "succeeded",
					"created_at": now.Format(time.RFC3339),
				},
				{
					"run_id": "w-2", "wallet": "w", "mode": "once",
					"total_usd": 100.0, "total": 4, "status": "partial",
					"created_at": now.Format(time.RFC3339),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	app := testApp()
	err := app.Run([]string{"test", "--server-url", server.URL, "--json",
		"runs", "list", "--must-jq", `.status == "partial"`})

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var buf bytes.Buffer
	buf.ReadFrom(r)

	var runs []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &runs); err != nil {
		t.Fatalf("expected JSON array output, got: %s", buf.String())
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 filtered run, got: %d", len(runs))
	}
	if runs[0]["run_id"] != "w-2" {
		t.Errorf("expected filtered run w-2, got: %v", runs[0]["run_id"])
	}
}

func TestGetRunCommand(t *testing.T) {
	os.Unsetenv("BASKETD_SERVER_URL")

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs/test-wallet-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		run := map[string]interface{}{
			"run_id":     "test-wallet-1",
			"wallet":     "test-wallet",
			"basket_id":  "mag7",
			"mode":       "once",
			"total_usd":  700.0,
			"total":      7,
			"status":     "succeeded",
			"created_at": now.Format(time.RFC3339),
			"steps": []map[string]interface{}{
				{
					"seq": 0, "asset_mint": "mint-a",
					"confirmation_id": "sig-a",
					"created_at":      now.Format(time.RFC3339),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(run)
	}))
	defer server.Close()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	app := testApp()
	err := app.Run([]string{"test", "--server-url", server.URL,
		"runs", "get", "test-wallet-1"})

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	if !bytes.Contains([]byte(output), []byte("test-wallet-1")) {
		t.Errorf("expected run ID in output, got: %s", output)
	}
	if !bytes.Contains([]byte(output), []byte("sig-a")) {
		t.Errorf("expected confirmation in output, got: %s", output)
	}
}

func TestGetRunCommand_NotFound(t *testing.T) {
	os.Unsetenv("BASKETD_SERVER_URL")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "run not found"})
	}))
	defer server.Close()

	app := testApp()
	err := app.Run([]string{"test", "--server-url", server.URL,
		"runs", "get", "nonexistent"})
	if err == nil {
		t.Fatal("expected error for nonexistent run")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("run not found")) {
		t.Errorf("expected 'run not found' error, got: %v", err)
	}
}

func TestGetRunCommand_MissingArg(t *testing.T) {
	app := testApp()
	err := app.Run([]string{"test", "runs", "get"})
	if err == nil {
		t.Fatal("expected error when run ID is missing")
	}
}

// testApp builds an app with just the run commands and the global flags they
// resolve.
func testApp() *cli.App {
	return &cli.App{
		Commands: []*cli.Command{
			{
				Name: "runs",
				Subcommands: []*cli.Command{
					listRunsCommand(),
					getRunCommand(),
					watchRunsCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server-url",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "nats-url",
				Value: "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
			},
		},
	}
}
