package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/multierr"
)

var migrationFileName = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)

var requiredAnnotations = []string{"-- +goose Up", "-- +goose Down"}

// ValidateDir checks naming and annotations of every .sql file in dir, then
// lets goose collect them so duplicate versions fail here rather than at deploy.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	var problems error
	for _, path := range files {
		name := filepath.Base(path)
		if !migrationFileName.MatchString(name) {
			problems = multierr.Append(problems, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, annotation := range requiredAnnotations {
			if !strings.Contains(string(content), annotation) {
				problems = multierr.Append(problems, fmt.Errorf("%s: missing %q", name, annotation))
			}
		}
	}
	if problems != nil {
		return problems
	}
	if len(files) == 0 {
		return nil
	}

	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	return nil
}
