package config

import "strings"

// GoogleConfig provides the Google OAuth client settings. ClientID and
// ClientSecret have no defaults: the orchestrator treats their absence as a
// fatal configuration error on first use.
type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURL() string
	GetGoogleScopes() []string
	GetGoogleIssuer() string
	GetGoogleAuthURL() string
	GetGoogleTokenURL() string
	GetCalendarBaseURL() string
}

type Google struct{}

var _ GoogleConfig = Google{}

func (Google) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Google) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (g Google) GetGoogleRedirectURL() string {
	return GetEnv("GOOGLE_REDIRECT_URL", EnvVars{}.GetBaseURL()+"/oauth/google/callback")
}

// GetGoogleScopes returns the requested scopes: the OIDC identity scopes plus
// the calendar events scope.
func (Google) GetGoogleScopes() []string {
	scopes := GetEnv("GOOGLE_SCOPES", "openid email profile https://www.googleapis.com/auth/calendar.events")
	return strings.Fields(scopes)
}

func (Google) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

func (Google) GetGoogleAuthURL() string {
	return GetEnv("GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
}

func (Google) GetGoogleTokenURL() string {
	return GetEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token")
}

func (Google) GetCalendarBaseURL() string {
	return GetEnv("CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3")
}
