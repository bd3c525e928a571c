package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
)

func (s *Server) activeChallenge(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	ch, err := s.svc.ActiveChallenge(r.Context(), jobID, ownerRef(r))
	if err != nil {
		// No active challenge is a normal state, not an error.
		if errors.Is(err, formauto.ErrChallengeNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// solveChallengeRequest is the body of POST challenge/solution.
type solveChallengeRequest struct {
	Solution string `json:"solution"`
}

func (s *Server) solveChallenge(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	var req solveChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	solution := strings.TrimSpace(req.Solution)
	if solution == "" {
		writeError(w, http.StatusBadRequest, "solution required")
		return
	}
	if n := utf8.RuneCountInString(solution); n < challenge.MinSolutionLength || n > challenge.MaxSolutionLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("solution must be %d to %d characters", challenge.MinSolutionLength, challenge.MaxSolutionLength))
		return
	}

	res, err := s.svc.SolveChallenge(r.Context(), jobID, ownerRef(r), solution)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// A rejected solution is a 200: the result carries Solved false and
	// a fresh challenge is already in place.
	writeJSON(w, http.StatusOK, res)
}
