package api

import (
	"encoding/json"
	"errors"
	"net/http"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do about a failed response write
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: status, Message: message}})
}

// writeServiceError maps sentinel errors to HTTP statuses. Unmapped
// errors become opaque 500s so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case isConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case isBadInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, formauto.ErrJobNotFound) ||
		errors.Is(err, formauto.ErrUpdateNotFound) ||
		errors.Is(err, formauto.ErrChallengeNotFound) ||
		errors.Is(err, formauto.ErrArtifactNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, formauto.ErrJobNotActive) ||
		errors.Is(err, formauto.ErrJobAlreadyExists) ||
		errors.Is(err, formauto.ErrChallengeActive) ||
		errors.Is(err, formauto.ErrChallengeSolved) ||
		errors.Is(err, formauto.ErrChallengeExpired) ||
		errors.Is(err, formauto.ErrInvalidTransition)
}

func isBadInput(err error) bool {
	return errors.Is(err, formauto.ErrMissingRef) ||
		errors.Is(err, formauto.ErrMissingOwner) ||
		errors.Is(err, formauto.ErrEmptyFieldMap) ||
		errors.Is(err, formauto.ErrInvalidSolution)
}
