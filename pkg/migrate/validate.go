package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe     = regexp.MustCompile(`^(\d{14})_([a-z]+)_[a-z0-9_]+\.sql$`)
	createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(IF\s+NOT\s+EXISTS\s+)?([a-z0-9_]+)`)
	dropTableRe   = regexp.MustCompile(`(?i)DROP\s+TABLE\s+(IF\s+EXISTS\s+)?([a-z0-9_]+)`)
)

type migrationFile struct {
	version string
	name    string
}

// listMigrations returns the .sql files in dir sorted by version, rejecting bad names.
func listMigrations(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	seen := map[string]string{}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil || !hasPrefixVerb(m[2]) {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_<%s>_subject.sql)",
				name, strings.Join(namePrefixes, "|"))
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name
		files = append(files, migrationFile{version: m[1], name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// ValidateDir checks filenames and the goose layout of every migration in dir.
// Tables are created with IF NOT EXISTS, dropped with IF EXISTS, and every table an
// Up section creates must be dropped by its Down section.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	files, err := listMigrations(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		full := filepath.Join(dir, f.name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}
		if err := validateSQL(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", f.name, err)
		}
	}
	return nil
}

func validateSQL(txt string) error {
	upAt := strings.Index(txt, "-- +goose Up")
	downAt := strings.Index(txt, "-- +goose Down")
	switch {
	case upAt < 0:
		return fmt.Errorf("missing \"-- +goose Up\"")
	case downAt < 0:
		return fmt.Errorf("missing \"-- +goose Down\"")
	case downAt < upAt:
		return fmt.Errorf("\"-- +goose Down\" precedes \"-- +goose Up\"")
	case strings.Count(txt, "-- +goose Up") > 1 || strings.Count(txt, "-- +goose Down") > 1:
		return fmt.Errorf("goose sections must appear once")
	}
	if err := checkStatementBlocks(txt); err != nil {
		return err
	}

	up, down := txt[upAt:downAt], txt[downAt:]
	dropped := map[string]bool{}
	for _, m := range dropTableRe.FindAllStringSubmatch(down, -1) {
		if m[1] == "" {
			return fmt.Errorf("DROP TABLE %s must use IF EXISTS", m[2])
		}
		dropped[strings.ToLower(m[2])] = true
	}
	for _, m := range createTableRe.FindAllStringSubmatch(up, -1) {
		table := strings.ToLower(m[2])
		if m[1] == "" {
			return fmt.Errorf("CREATE TABLE %s must use IF NOT EXISTS", table)
		}
		if !dropped[table] {
			return fmt.Errorf("table %s is created but never dropped in Down", table)
		}
	}
	return nil
}

func checkStatementBlocks(txt string) error {
	open := false
	for i, line := range strings.Split(txt, "\n") {
		switch strings.TrimSpace(line) {
		case "-- +goose StatementBegin":
			if open {
				return fmt.Errorf("line %d: nested StatementBegin", i+1)
			}
			open = true
		case "-- +goose StatementEnd":
			if !open {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", i+1)
			}
			open = false
		}
	}
	if open {
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
