package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/saasgate/tenant-gateway/handoff"
	"github.com/saasgate/tenant-gateway/impersonation"
	"github.com/saasgate/tenant-gateway/internal/config"
	"github.com/saasgate/tenant-gateway/policy"
	"github.com/saasgate/tenant-gateway/routes"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
)

// Server is the HTTP edge of the gateway. Every request passes through
// the gateway middleware; requests the policy engine allows reach either
// the admin handoff API or the protected application handler.
type Server struct {
	env            string
	mux            *http.ServeMux
	registered     []string
	config         config.Config
	codec          *sessionjwt.Codec
	engine         *policy.Engine
	routeTable     *routes.Table
	broker         *handoff.Broker
	impersonations *impersonation.Manager
	app            http.Handler
	log            zerolog.Logger
}

// New wires the gateway edge. The app handler is the protected
// application standing behind the gateway; it only sees requests the
// policy engine allowed.
func New(cfg config.Config, codec *sessionjwt.Codec, broker *handoff.Broker, impersonations *impersonation.Manager, app http.Handler, log zerolog.Logger) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("[Server New] invalid configuration: %w", err)
	}

	s := &Server{
		env:            cfg.GetEnv(),
		mux:            http.NewServeMux(),
		config:         cfg,
		codec:          codec,
		engine:         policy.NewEngine(),
		routeTable:     buildRouteTable(cfg),
		broker:         broker,
		impersonations: impersonations,
		app:            app,
		log:            log,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// buildRouteTable turns the configured prefix lists into the static
// classification table. Unmatched paths default to Unrestricted: they
// still require a valid session, they just exist on every host.
func buildRouteTable(cfg config.GatewayConfig) *routes.Table {
	var rules []routes.Rule
	for _, p := range cfg.GetPublicPrefixes() {
		rules = append(rules, routes.Rule{Prefix: p, Class: routes.Public})
	}
	for _, p := range cfg.GetPlatformPrefixes() {
		rules = append(rules, routes.Rule{Prefix: p, Class: routes.PlatformOnly})
	}
	for _, p := range cfg.GetTenantPrefixes() {
		rules = append(rules, routes.Rule{Prefix: p, Class: routes.TenantOnly})
	}
	return routes.NewTable(rules, routes.Unrestricted)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.registered = append(s.registered, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.registered = append(s.registered, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.registered {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
