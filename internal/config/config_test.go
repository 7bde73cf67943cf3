package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lnrsadmin.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	path := writeConfig(t, `
project: test-lnrs
version: 1
database:
  driver: sqlite
  dsn: sqlite://./lnrs.db
backups:
  enabled: true
  dir: ./backups
  keep: 5
`)

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project != "test-lnrs" {
		t.Errorf("project = %q", cfg.Project)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if !cfg.Backups.Enabled || cfg.Backups.Keep != 5 {
		t.Errorf("backups = %+v", cfg.Backups)
	}
}

func TestLoadProjectConfigBackupsOff(t *testing.T) {
	path := writeConfig(t, `
project: test-lnrs
version: 1
database:
  driver: postgres
  dsn: postgres://localhost/lnrs
`)

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backups.Enabled {
		t.Error("backups should default to disabled")
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{
			name:     "missing project",
			contents: "version: 1\ndatabase:\n  driver: sqlite\n  dsn: sqlite://x.db\n",
			wantErr:  "project name is required",
		},
		{
			name:     "wrong version",
			contents: "project: x\nversion: 2\ndatabase:\n  driver: sqlite\n  dsn: sqlite://x.db\n",
			wantErr:  "unsupported version",
		},
		{
			name:     "missing driver",
			contents: "project: x\nversion: 1\ndatabase:\n  dsn: sqlite://x.db\n",
			wantErr:  "database driver is required",
		},
		{
			name:     "unknown driver",
			contents: "project: x\nversion: 1\ndatabase:\n  driver: oracle\n  dsn: x\n",
			wantErr:  "unsupported database driver",
		},
		{
			name:     "missing dsn",
			contents: "project: x\nversion: 1\ndatabase:\n  driver: sqlite\n",
			wantErr:  "database dsn is required",
		},
		{
			name:     "backups without dir",
			contents: "project: x\nversion: 1\ndatabase:\n  driver: sqlite\n  dsn: sqlite://x.db\nbackups:\n  enabled: true\n  keep: 5\n",
			wantErr:  "backups dir is required",
		},
		{
			name:     "backups keep zero",
			contents: "project: x\nversion: 1\ndatabase:\n  driver: sqlite\n  dsn: sqlite://x.db\nbackups:\n  enabled: true\n  dir: ./b\n",
			wantErr:  "backups keep must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.contents)
			_, err := LoadProjectConfig(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProjectConfigMissingFile(t *testing.T) {
	if _, err := LoadProjectConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
