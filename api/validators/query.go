package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter, applying the fallback
// when absent and clamping bounds errors to a validation failure.
func ParseQueryInt(r *http.Request, name string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, name+" out of range").
			WithDetails(map[string]any{"min": min, "max": max})
	}
	return value, nil
}
