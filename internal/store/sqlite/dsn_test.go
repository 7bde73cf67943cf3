package sqlite

import (
	"testing"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		driverDSN string
		path      string
		wantErr   bool
	}{
		{
			name:      "memory",
			dsn:       "sqlite://:memory:",
			driverDSN: ":memory:",
			path:      "",
		},
		{
			name:      "relative path",
			dsn:       "sqlite://lnrs.db",
			driverDSN: "./lnrs.db",
			path:      "./lnrs.db",
		},
		{
			name:      "explicit relative path",
			dsn:       "sqlite://./data/lnrs.db",
			driverDSN: "./data/lnrs.db",
			path:      "./data/lnrs.db",
		},
		{
			name:      "absolute path",
			dsn:       "sqlite:///var/lib/lnrs.db",
			driverDSN: "/var/lib/lnrs.db",
			path:      "/var/lib/lnrs.db",
		},
		{
			name:      "query string kept for driver only",
			dsn:       "sqlite://lnrs.db?cache=shared",
			driverDSN: "./lnrs.db?cache=shared",
			path:      "./lnrs.db",
		},
		{
			name:      "escaped path",
			dsn:       "sqlite://data/my%20project.db",
			driverDSN: "./data/my project.db",
			path:      "./data/my project.db",
		},
		{
			name:    "wrong scheme",
			dsn:     "postgres://localhost/lnrs",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driverDSN, path, err := parseDSN(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDSN(%q) expected error, got none", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDSN(%q) returned error: %v", tt.dsn, err)
			}
			if driverDSN != tt.driverDSN {
				t.Errorf("driverDSN = %q, want %q", driverDSN, tt.driverDSN)
			}
			if path != tt.path {
				t.Errorf("path = %q, want %q", path, tt.path)
			}
		})
	}
}
