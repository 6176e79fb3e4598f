package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/aussiebroadwan/authify/pkg/slogx"

	_ "github.com/aussiebroadwan/authify/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	cookies      cookieWriter

	store              store.Store
	AuthService        *service.AuthService
	TFAService         *service.TFAService
	KeyRotationService *service.KeyRotationService
}

// NewRouter builds a Router. secureCookies marks the session cookies Secure
// and SameSite=Lax, which every deployment behind TLS should do.
func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	secureCookies bool,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		cookies:      cookieWriter{secure: secureCookies},
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTFA()
	r.registerKeyRotation()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
	r.Mux.Handle("/", http.HandlerFunc(notFound))
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Authify Authentication Service API
//	@version		0.1.0
//	@description	Account registration, email verification, password reset, TOTP two-factor authentication and cookie based sessions.
//	@description
//	@description				Access tokens are JWTs signed with EdDSA or ES256 and can be verified using the JWKS endpoint.
//	@description				Browsers receive them in the accessToken cookie; other clients may send them as a Bearer token.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/authify
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated wraps h so it only runs for a verified access token.
func (r *Router) authenticated(h http.HandlerFunc, mws ...httpx.Middleware) http.Handler {
	return httpx.Chain(h, append([]httpx.Middleware{
		httpx.AuthnMiddleware(r.keys, authsdk.AccessTokenCookie, denyUnauthenticated),
	}, mws...)...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.AuthService, cookies: r.cookies}

	// Credential endpoints - strict rate limit by IP + email field
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIPAndEmail(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndEmail(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIPAndEmail(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Session endpoints - moderate
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/resend-verification",
		httpx.Chain(http.HandlerFunc(h.HandleResendVerification),
			httpx.RateLimitByIPAndEmail(httpx.ModerateLimit),
		),
	)

	// Reads - lenient
	r.Mux.Handle("GET /api/auth/verify-email",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /api/auth/me",
		r.authenticated(h.HandleMe,
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerTFA() {
	h := &TFAHandler{TFA: r.TFAService}

	r.Mux.Handle("POST /api/auth/tfa/enable",
		r.authenticated(h.HandleEnable,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	// POST /tfa/verify - strict rate limit by user (prevent brute force of TOTP codes)
	r.Mux.Handle("POST /api/auth/tfa/verify",
		r.authenticated(h.HandleVerify,
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /api/auth/tfa/disable",
		r.authenticated(h.HandleDisable,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerKeyRotation() {
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	r.Mux.Handle("POST /api/auth/admin/keys/rotate",
		r.authenticated(h.HandleRotate,
			httpx.RequireRole(string(domain.RoleAdmin), denyForbidden),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	health := &HealthHandler{
		StartTime: r.startTime,
		Version:   r.buildVersion,
		Store:     r.store,
		Keys:      r.keys.KeySet(),
	}

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(health.HandleLivez),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(health.HandleReadyz),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys.KeySet()),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, http.StatusNotFound, "No handler for "+r.Method+" "+r.URL.Path)
}
