package server

import (
	"net/http"
	"strconv"

	"github.com/jobpath/jobpath-server/rpcstore"
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) AdminStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.store.AdminDashboardStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// AdminLoginAttemptsHandler returns the recent attempts for the user given
// in the user_id query parameter.
func (s *Server) AdminLoginAttemptsHandler() http.HandlerFunc {
	type response struct {
		Attempts []rpcstore.LoginAttempt `json:"attempts"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		attempts, err := s.store.RecentLoginAttempts(r.Context(), userID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Attempts: attempts})
	}
}
