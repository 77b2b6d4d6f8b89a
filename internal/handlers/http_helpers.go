package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/api"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/permissions"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/session"
	"github.com/bergcosfer/clickcheck.grupoclickglobal.com.br/internal/validation"
)

// writeJSON encodes v as JSON with the provided status code and a JSON content-type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the same {"error": msg} shape the PHP backend
// uses, so the front-end reads both the same way.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type problemBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeFailure maps an error from the lifecycle layer to a status code.
// Backend errors keep the backend's status and message.
func writeFailure(w http.ResponseWriter, err error) {
	if p, ok := validation.AsProblems(err); ok {
		out := make([]problemBody, 0, len(p))
		for _, pr := range p {
			out = append(out, problemBody{Field: pr.Field, Message: pr.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": p.Error(), "problems": out})
		return
	}
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, api.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, permissions.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, validation.ErrNotConfirmed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, validation.ErrUndecidedLinks),
		errors.Is(err, validation.ErrNotCorrectable),
		errors.Is(err, validation.ErrNotRevertible):
		writeError(w, http.StatusConflict, err.Error())
	default:
		if status := api.StatusCode(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// pathVar returns the mux path var value (or empty string if missing).
func pathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// decodeJSON decodes JSON request bodies using the default decoder settings.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// queryInt reads a positive integer query parameter, or def.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
