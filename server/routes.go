package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Calendar link flow. The callback arrives from Google without a bearer
	// token, so it is not behind RequireAuth.
	s.RegisterRouteHandler("POST "+RouteOAuthConnect, ChainMiddleware(s.OAuthConnectHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.APIMiddleware()...)) // For form_post response mode
	s.RegisterRouteHandler("GET "+RouteOAuthStatus, ChainMiddleware(s.OAuthStatusHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteOAuthUnlink, ChainMiddleware(s.OAuthUnlinkHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Calendar proxy
	s.RegisterRouteHandler("GET "+RouteCalendarEvents, ChainMiddleware(s.CalendarListHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteCalendarEvents, ChainMiddleware(s.CalendarCreateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PATCH "+RouteCalendarEvent, ChainMiddleware(s.CalendarUpdateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteCalendarEvent, ChainMiddleware(s.CalendarDeleteHandler(), s.APIMiddleware(s.RequireAuth())...))

	// MFA
	s.RegisterRouteHandler("POST "+RouteMFAEnroll, ChainMiddleware(s.MFAEnrollHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteMFAChallenge, ChainMiddleware(s.MFAChallengeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteMFAVerify, ChainMiddleware(s.MFAVerifyHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteMFABackupCodes, ChainMiddleware(s.MFABackupCodesHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteMFABackupCodesVerify, ChainMiddleware(s.MFABackupCodeVerifyHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteMFAFactor, ChainMiddleware(s.MFAUnenrollHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Tracker
	s.RegisterRouteHandler("GET "+RouteApplications, ChainMiddleware(s.ApplicationListHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteApplications, ChainMiddleware(s.ApplicationCreateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteApplication, ChainMiddleware(s.ApplicationGetHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PATCH "+RouteApplication, ChainMiddleware(s.ApplicationUpdateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteApplication, ChainMiddleware(s.ApplicationDeleteHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteInterviews, ChainMiddleware(s.InterviewListHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteInterviews, ChainMiddleware(s.InterviewCreateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PATCH "+RouteInterview, ChainMiddleware(s.InterviewUpdateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteInterview, ChainMiddleware(s.InterviewDeleteHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteContacts, ChainMiddleware(s.ContactListHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteContacts, ChainMiddleware(s.ContactCreateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PATCH "+RouteContact, ChainMiddleware(s.ContactUpdateHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteContact, ChainMiddleware(s.ContactDeleteHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteProgramDays, ChainMiddleware(s.ProgramDaysListHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PUT "+RouteProgramDays, ChainMiddleware(s.ProgramDayUpsertHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Admin routes (require the admin role claim)
	s.RegisterRouteHandler("GET "+RouteAdminStats, ChainMiddleware(s.AdminStatsHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAdmin())...))
	s.RegisterRouteHandler("GET "+RouteAdminLoginAttempts, ChainMiddleware(s.AdminLoginAttemptsHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAdmin())...))
}
