package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/core"
)

// dateParam is the layout of date query and body parameters.
const dateParam = "2006-01-02"

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseDate parses a YYYY-MM-DD parameter. Empty input yields the zero time.
func parseDate(op, name, val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateParam, val)
	if err != nil {
		return time.Time{}, core.NewError(core.KindValidation, op, "invalid date for %s: %q", name, val)
	}
	return t, nil
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewError(core.KindValidation, op, "request body is required")
		}
		return &core.Error{Kind: core.KindValidation, Op: op, Message: "invalid JSON body", Err: err}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, http.StatusOK, "ok", map[string]string{"status": "ok"})
}
