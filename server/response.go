package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/jobpath/jobpath-server/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("encoding response")
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps a tagged error to its HTTP status. The response body
// carries only the user-presentable message; the cause is logged.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindToken, apperrors.KindVerification:
		status = http.StatusUnauthorized
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindRateLimit:
		status = http.StatusTooManyRequests
	case apperrors.KindProvider:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSONError(w, status, apperrors.Message(err))
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, "malformed request body", err)
	}
	return nil
}
