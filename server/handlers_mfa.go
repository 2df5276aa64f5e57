package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jobpath/jobpath-server/rpcstore"
)

// recordLoginAttempt appends to the audit trail behind the admin routes.
// Recording is best effort and never changes the response.
func (s *Server) recordLoginAttempt(r *http.Request, userID string, success bool) {
	attempt := rpcstore.LoginAttempt{
		UserID:    userID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
		MFAUsed:   true,
		At:        time.Now(),
	}
	if err := s.store.RecordLoginAttempt(r.Context(), attempt); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("recording login attempt failed")
	}
}

func (s *Server) MFAEnrollHandler() http.HandlerFunc {
	type request struct {
		AccountName string `json:"account_name"`
	}
	type response struct {
		FactorID string `json:"factor_id"`
		Secret   string `json:"secret"`
		URI      string `json:"uri"`
		QRCode   string `json:"qr_code"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		enrollment, err := s.mfa.Enroll(r.Context(), userIDFromContext(r.Context()), req.AccountName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, response{
			FactorID: enrollment.FactorID,
			Secret:   enrollment.Secret,
			URI:      enrollment.URI,
			QRCode:   enrollment.QRCode,
		})
	}
}

func (s *Server) MFAChallengeHandler() http.HandlerFunc {
	type request struct {
		FactorID string `json:"factor_id"`
	}
	type response struct {
		ChallengeID string `json:"challenge_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		challengeID, err := s.mfa.Challenge(r.Context(), userIDFromContext(r.Context()), req.FactorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, response{ChallengeID: challengeID})
	}
}

// MFAVerifyHandler verifies a TOTP code: with a challenge it completes
// enrollment, without one it is a login-time check.
func (s *Server) MFAVerifyHandler() http.HandlerFunc {
	type request struct {
		FactorID    string `json:"factor_id"`
		ChallengeID string `json:"challenge_id"`
		Code        string `json:"code"`
	}
	type response struct {
		Verified bool `json:"verified"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		userID := userIDFromContext(r.Context())
		var err error
		if req.ChallengeID != "" {
			err = s.mfa.VerifyEnrollment(r.Context(), userID, req.FactorID, req.ChallengeID, req.Code)
		} else {
			// Login-time checks feed the audit trail; enrollment
			// verification is setup, not a login.
			err = s.mfa.VerifyCode(r.Context(), userID, req.Code)
			s.recordLoginAttempt(r, userID, err == nil)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Verified: true})
	}
}

func (s *Server) MFABackupCodesHandler() http.HandlerFunc {
	type response struct {
		Codes []string `json:"codes"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := s.mfa.GenerateBackupCodes(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, response{Codes: codes})
	}
}

func (s *Server) MFABackupCodeVerifyHandler() http.HandlerFunc {
	type request struct {
		Code string `json:"code"`
	}
	type response struct {
		Verified bool `json:"verified"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		userID := userIDFromContext(r.Context())
		err := s.mfa.VerifyBackupCode(r.Context(), userID, req.Code)
		s.recordLoginAttempt(r, userID, err == nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Verified: true})
	}
}

func (s *Server) MFAUnenrollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.mfa.Unenroll(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
