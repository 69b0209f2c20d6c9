package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

// Migration names start with one of these verbs, e.g. create_order_drafts or add_ratings_index.
var namePrefixes = []string{"create", "add", "alter", "drop", "backfill"}

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql. A create_<table>
// name gets a table skeleton with its matching DROP; other verbs get empty sections.
// The version is bumped past the newest file in dir so ordering survives clock skew.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, now)
	if err != nil {
		return "", err
	}
	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, safe))
	if _, err := os.Stat(fullpath); err == nil {
		return "", fmt.Errorf("migration already exists: %s", fullpath)
	}
	if err := os.WriteFile(fullpath, []byte(migrationTemplate(safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) (string, error) {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	verb, rest, _ := strings.Cut(safe, "_")
	if !hasPrefixVerb(verb) || rest == "" {
		return "", fmt.Errorf("name %q must look like <%s>_<subject>", name, strings.Join(namePrefixes, "|"))
	}
	return safe, nil
}

func hasPrefixVerb(verb string) bool {
	for _, p := range namePrefixes {
		if verb == p {
			return true
		}
	}
	return false
}

func nextVersion(dir string, now time.Time) (string, error) {
	files, err := listMigrations(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return now.Format(versionLayout), nil
	}
	latest, err := time.Parse(versionLayout, files[len(files)-1].version)
	if err != nil {
		return "", fmt.Errorf("parse version of %q: %w", files[len(files)-1].name, err)
	}
	if !now.After(latest) {
		now = latest.Add(time.Second)
	}
	return now.Format(versionLayout), nil
}

func migrationTemplate(name string) string {
	up, down := "-- "+name, "-- rollback "+name
	if table, ok := strings.CutPrefix(name, "create_"); ok {
		up = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`, table)
		down = fmt.Sprintf("DROP TABLE IF EXISTS %s;", table)
	}
	return fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
%s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
%s
-- +goose StatementEnd
`, up, down)
}
