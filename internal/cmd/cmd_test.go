package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/claytondukes/dibo-gems/internal/config"
)

// executeCommand runs a cobra command with args and returns captured output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd()
	if root.Use != "gems-api" {
		t.Fatalf("root.Use = %q", root.Use)
	}
	want := map[string]bool{"serve": false, "locks": false, "key": false, "import": false, "migrate": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantKey  string
		wantFile string
		wantErr  bool
	}{
		{name: "apostrophe", args: []string{"key", "2", "Berserker's Eye"}, wantKey: "2-berserker_s_eye", wantFile: "2star/berserkers_eye.json"},
		{name: "split words", args: []string{"key", "5star", "Blood-Soaked", "Jade"}, wantKey: "5-blood_soaked_jade", wantFile: "5star/blood_soaked_jade.json"},
		{name: "unknown tier", args: []string{"key", "3", "Anything"}, wantErr: true},
		{name: "missing name", args: []string{"key", "2"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(NewRootCmd(), tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, "item_key: "+tt.wantKey) {
				t.Errorf("expected key %q in %q", tt.wantKey, out)
			}
			if !strings.Contains(out, tt.wantFile) {
				t.Errorf("expected file %q in %q", tt.wantFile, out)
			}
		})
	}
}

func TestRenderLocks(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	out := renderLocks(map[string]lockRow{
		"5-blood_soaked_jade": {HolderID: "bob@example.com", HolderDisplayName: "Bob", AcquiredAt: now.Add(-time.Minute), ExpiresAt: now.Add(29 * time.Minute)},
		"2-berserker_s_eye":   {HolderID: "alice@example.com", HolderDisplayName: "Alice", AcquiredAt: now.Add(-18 * time.Minute), ExpiresAt: now.Add(12 * time.Minute)},
	}, now)

	for _, want := range []string{"ITEM", "Alice <alice@example.com>", "12m0s", "29m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	if strings.Index(out, "2-berserker_s_eye") > strings.Index(out, "5-blood_soaked_jade") {
		t.Errorf("expected rows sorted by item key:\n%s", out)
	}

	if empty := renderLocks(nil, now); !strings.Contains(empty, "No active locks.") {
		t.Errorf("unexpected empty rendering %q", empty)
	}
}

func TestLocksCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/locks" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"2-berserker_s_eye":{"holder_id":"alice@example.com","holder_display_name":"Alice","acquired_at":"2025-01-01T12:00:00Z","expires_at":"2999-01-01T12:00:00Z"}}`))
	}))
	defer srv.Close()

	out, err := executeCommand(NewRootCmd(), "locks", "--server", srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2-berserker_s_eye") || !strings.Contains(out, "Alice") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	if _, err := executeCommand(NewRootCmd(), "locks", "--server", failing.URL); err == nil {
		t.Fatal("expected error for failing server")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gems.yaml")
	yaml := `
server:
  port: "9090"
locks:
  duration: 10m
auth:
  jwt_secret: from-file
  admins: [Root@Example.com]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GEMS_LOCKS_DURATION", "15m")

	cfg, logger, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Locks.Duration != 15*time.Minute {
		t.Errorf("expected env to override file, got %v", cfg.Locks.Duration)
	}
	if cfg.Storage.Driver != config.DriverFile {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if len(cfg.Auth.Admins) != 1 || cfg.Auth.Admins[0] != "root@example.com" {
		t.Errorf("admins = %v", cfg.Auth.Admins)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestImportCommand_RequiresDatabase(t *testing.T) {
	t.Setenv("GEMS_AUTH_JWT_SECRET", "secret")
	t.Setenv("GEMS_STORAGE_DATABASE_URL", "")
	t.Chdir(t.TempDir())

	_, err := executeCommand(NewRootCmd(), "import")
	if err == nil || !strings.Contains(err.Error(), "database_url") {
		t.Fatalf("expected database_url error, got %v", err)
	}
}
