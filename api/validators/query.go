package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter bounded by [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, fieldError(key, "must be a whole number", nil)
	case value < lo || value > hi:
		return 0, fieldError(key, "out of range", map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

// ParseUUID validates a path or query value as a UUID.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fieldError(field, "must be a UUID", nil)
	}
	return id, nil
}

func fieldError(field, problem string, extra map[string]any) error {
	details := map[string]any{"field": field, "problem": problem}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+problem).WithDetails(details)
}
