package sqlite

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// parseDSN turns a sqlite:// DSN into the string the driver expects plus the
// bare file path the snapshot subsystem copies. The path is "" for
// :memory: databases, which are not snapshot-capable.
func parseDSN(dsn string) (driverDSN, path string, err error) {
	if !strings.HasPrefix(dsn, "sqlite://") {
		return "", "", fmt.Errorf("invalid sqlite DSN scheme, expected sqlite://")
	}

	rest := strings.TrimPrefix(dsn, "sqlite://")
	if rest == ":memory:" {
		return ":memory:", "", nil
	}

	query := ""
	if i := strings.Index(rest, "?"); i >= 0 {
		query = rest[i+1:]
		rest = rest[:i]
	}

	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return "", "", fmt.Errorf("unescaping path: %w", err)
	}
	path = unescaped

	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "./") {
		path = "./" + path
	}

	driverDSN = path
	if query != "" {
		driverDSN = path + "?" + query
	}
	return driverDSN, path, nil
}
