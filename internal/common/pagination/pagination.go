package pagination

import (
	"net/http"
	"strconv"

	"clinic-console/internal/common/errors"
)

// DefaultLimit is the default number of items returned by list endpoints
const DefaultLimit = 20

// MaxLimit is the maximum allowed items per request
const MaxLimit = 100

// Params represents list parameters
type Params struct {
	Limit int `json:"limit"`
}

// ParseParams extracts the limit query parameter using DefaultLimit and MaxLimit
func ParseParams(r *http.Request) (Params, error) {
	limit, err := ParseLimit(r, DefaultLimit, MaxLimit)
	if err != nil {
		return Params{}, err
	}
	return Params{Limit: limit}, nil
}

// ParseLimit reads ?limit=. A missing value yields def, values above max are
// clamped to max, and anything that is not a positive integer is a validation error.
func ParseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.ValidationError("limit must be a positive integer").WithContext("limit", raw)
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}
