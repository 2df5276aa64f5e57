package server

const (
	RouteHealth = "/healthz"

	RouteOAuthConnect  = "/oauth/google/connect"
	RouteOAuthCallback = "/oauth/google/callback"
	RouteOAuthStatus   = "/oauth/google/status"
	RouteOAuthUnlink   = "/oauth/google"

	RouteCalendarEvents = "/calendar/events"
	RouteCalendarEvent  = "/calendar/events/{id}"

	RouteMFAEnroll            = "/mfa/enroll"
	RouteMFAChallenge         = "/mfa/challenge"
	RouteMFAVerify            = "/mfa/verify"
	RouteMFABackupCodes       = "/mfa/backup-codes"
	RouteMFABackupCodesVerify = "/mfa/backup-codes/verify"
	RouteMFAFactor            = "/mfa/factors/{id}"

	RouteApplications = "/applications"
	RouteApplication  = "/applications/{id}"
	RouteInterviews   = "/interviews"
	RouteInterview    = "/interviews/{id}"
	RouteContacts     = "/contacts"
	RouteContact      = "/contacts/{id}"
	RouteProgramDays  = "/program/days"

	RouteAdminStats         = "/admin/stats"
	RouteAdminLoginAttempts = "/admin/login-attempts"
)
