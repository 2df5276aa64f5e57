package server

import (
	"net/http"
	"net/url"

	apperrors "github.com/jobpath/jobpath-server/internal/errors"
)

// OAuthConnectHandler starts the calendar link flow and returns the Google
// authorization URL for the client to navigate to.
func (s *Server) OAuthConnectHandler() http.HandlerFunc {
	type request struct {
		ReturnURL string `json:"return_url"`
	}
	type response struct {
		AuthURL string `json:"auth_url"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if r.Body != nil && r.ContentLength > 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
		}
		authURL, err := s.oauth.Initiate(r.Context(), userIDFromContext(r.Context()), safeReturnURL(req.ReturnURL))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{AuthURL: authURL})
	}
}

// OAuthCallbackHandler receives the redirect from Google. It is reached
// without a bearer token; the flow state identifies the user. On success
// the browser is redirected to the flow's return URL; every failure mode
// shows the same generic error.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				writeError(w, apperrors.Wrap(apperrors.KindValidation, "authentication failed", err))
				return
			}
		}

		state := callbackParam(r, "state")
		code := callbackParam(r, "code")
		errorParam := callbackParam(r, "error")

		returnURL, err := s.oauth.HandleCallback(r.Context(), state, code, errorParam)
		if err != nil {
			writeError(w, err)
			return
		}
		http.Redirect(w, r, returnURL, http.StatusSeeOther)
	}
}

// callbackParam reads a parameter from the query (GET redirect) or the form
// body (form_post response mode).
func callbackParam(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return r.PostFormValue(name)
}

func (s *Server) OAuthStatusHandler() http.HandlerFunc {
	type response struct {
		Linked bool `json:"linked"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		linked, err := s.oauth.Linked(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Linked: linked})
	}
}

// OAuthUnlinkHandler revokes the stored Google token. Unlinking an already
// unlinked account succeeds.
func (s *Server) OAuthUnlinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.oauth.Revoke(r.Context(), userIDFromContext(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// safeReturnURL keeps the post-link redirect target relative so the
// callback can never bounce the browser to another site.
func safeReturnURL(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return raw
}
