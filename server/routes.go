package server

import "net/http"

// Route path constants
const (
	RouteHealthz                 = "/healthz"
	RouteAdminImpersonationStart = "/admin/api/impersonation/start"
	RouteAdminSecureLoginStart   = "/admin/api/secure-login/start"
	RouteAdminImpersonationEnd   = "/admin/api/impersonation/{id}/end"
	RouteAdminImpersonation      = "/admin/api/impersonation/{id}"
)

func (s *Server) initRoutes() {
	// Handoff API (platform-only prefix, so Gateway already requires a
	// valid platform session; RequireSuperAdmin narrows it further)
	s.RegisterRouteHandler("POST "+RouteAdminImpersonationStart, ChainMiddleware(s.StartImpersonationHandler(), s.EdgeMiddleware(s.RequireSuperAdmin)...))
	s.RegisterRouteHandler("POST "+RouteAdminSecureLoginStart, ChainMiddleware(s.StartSecureLoginHandler(), s.EdgeMiddleware(s.RequireSuperAdmin)...))
	s.RegisterRouteHandler("POST "+RouteAdminImpersonationEnd, ChainMiddleware(s.EndImpersonationHandler(), s.EdgeMiddleware(s.RequireSuperAdmin)...))
	s.RegisterRouteHandler("GET "+RouteAdminImpersonation, ChainMiddleware(s.ImpersonationStatusHandler(), s.EdgeMiddleware(s.RequireSuperAdmin)...))

	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.HealthzHandler(), s.EdgeMiddleware()...))

	// Everything else is the protected application behind the gateway.
	s.RegisterRouteHandler("/", ChainMiddleware(s.appHandler(), s.EdgeMiddleware()...))
}

func (s *Server) appHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.app.ServeHTTP(w, r)
	}
}
