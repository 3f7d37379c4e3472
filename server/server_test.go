package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/saasgate/tenant-gateway/handoff"
	"github.com/saasgate/tenant-gateway/impersonation"
	"github.com/saasgate/tenant-gateway/internal/config"
	"github.com/saasgate/tenant-gateway/server"
	"github.com/saasgate/tenant-gateway/token"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
	"github.com/saasgate/tenant-gateway/token/keys"
	"github.com/stretchr/testify/require"
)

const (
	baseDomain   = "app.example.com"
	tenantHost   = "acme.app.example.com"
	cookieName   = "Authentication"
	handoffParam = "secureLoginToken"
)

type serverFixture struct {
	server  *server.Server
	codec   *sessionjwt.Codec
	minter  *handoff.Minter
	manager *impersonation.Manager
	records *impersonation.InMemoryRepo
	app     *appSpy
}

// appSpy is the protected application standing behind the gateway
type appSpy struct {
	hits []string
}

func (a *appSpy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.hits = append(a.hits, r.URL.Path)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("app"))
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	t.Setenv("BASE_DOMAIN", baseDomain)
	t.Setenv("ENV", "TEST")

	cfg := config.New()

	keyPair, err := keys.GenerateRSAKeyPair("test-key-1", 2048)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(keyPair)

	codec := sessionjwt.NewCodec(signer)
	minter := handoff.NewMinter(signer, cfg.GetHandoffTokenTTL())
	records := impersonation.NewInMemoryRepo()
	manager := impersonation.NewManager(records, minter, cfg.GetMinSessionMinutes(), cfg.GetMaxSessionMinutes(), zerolog.Nop())
	broker := handoff.NewBroker(minter, codec, handoff.NewInMemoryConsumedRepo(), manager, cfg.GetCookieName(), zerolog.Nop())

	app := &appSpy{}
	srv, err := server.New(cfg, codec, broker, manager, app, zerolog.Nop())
	require.NoError(t, err)

	return &serverFixture{
		server:  srv,
		codec:   codec,
		minter:  minter,
		manager: manager,
		records: records,
		app:     app,
	}
}

func (f *serverFixture) sessionCookie(t *testing.T, claims token.SessionClaims) *http.Cookie {
	t.Helper()
	raw, err := f.codec.Encode(claims)
	require.NoError(t, err)
	return &http.Cookie{Name: cookieName, Value: raw}
}

func (f *serverFixture) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)
	return w
}

func request(host, target string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Host = host
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func locationOf(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return loc
}

func clearedSessionCookie(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName && c.Value == "" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func sessionCookieFrom(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func validFor(d time.Duration) time.Time {
	return time.Now().Add(d)
}

func TestGateway_NoSessionRedirectsToLogin(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, request(baseDomain, "/platform"))

	require.Equal(t, http.StatusFound, w.Code)
	loc := locationOf(t, w)
	require.Equal(t, "/login", loc.Path)
	require.Equal(t, "/platform", loc.Query().Get("redirect"))
	require.Empty(t, f.app.hits)
}

func TestGateway_TenantSessionOnOwnSubdomain(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", TenantID: "acme", ExpiresAt: validFor(time.Hour),
	})

	w := f.do(t, request(tenantHost, "/dashboard", cookie))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"/dashboard"}, f.app.hits)
}

func TestGateway_MismatchedTenantSessionIsCleared(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", TenantID: "other", ExpiresAt: validFor(time.Hour),
	})

	w := f.do(t, request(tenantHost, "/dashboard", cookie))

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", locationOf(t, w).Path)
	require.True(t, clearedSessionCookie(w))
	require.Empty(t, f.app.hits)
}

func TestGateway_ExpiredSessionIsClearedEverywhere(t *testing.T) {
	f := newServerFixture(t)
	expired := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", TenantID: "acme", ExpiresAt: time.Now().Add(-time.Minute),
	})

	for _, tc := range []struct{ host, path string }{
		{baseDomain, "/platform"},
		{tenantHost, "/dashboard"},
		{tenantHost, "/anything"},
	} {
		w := f.do(t, request(tc.host, tc.path, expired))
		require.Equal(t, http.StatusFound, w.Code, "host=%s path=%s", tc.host, tc.path)
		require.Equal(t, "/login", locationOf(t, w).Path)
		require.True(t, clearedSessionCookie(w))
	}
	require.Empty(t, f.app.hits)
}

func TestGateway_TenantSessionOnPlatformHostIsCleared(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", TenantID: "acme", ExpiresAt: validFor(time.Hour),
	})

	w := f.do(t, request(baseDomain, "/platform", cookie))

	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, clearedSessionCookie(w))
}

func TestGateway_SuperAdminOverrideOnTenantHost(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.sessionCookie(t, token.SessionClaims{
		Subject: "admin-1", IsSuperAdmin: true, ExpiresAt: validFor(time.Hour),
	})

	w := f.do(t, request(tenantHost, "/dashboard", cookie))

	require.Equal(t, http.StatusOK, w.Code)
}

func TestGateway_PlatformOnlyRouteOnTenantHostRedirectsHome(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", TenantID: "acme", ExpiresAt: validFor(time.Hour),
	})

	w := f.do(t, request(tenantHost, "/platform/tenants", cookie))

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	require.False(t, clearedSessionCookie(w))
}

func TestGateway_PublicRouteNeedsNoSession(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, request(tenantHost, "/healthz"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestGateway_HandoffRedemption(t *testing.T) {
	f := newServerFixture(t)

	raw, _, err := f.manager.Start(t.Context(), "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)

	target := "/dashboard?" + url.Values{handoffParam: {raw}, "tab": {"billing"}}.Encode()
	w := f.do(t, request(tenantHost, target))

	// Session cookie minted for the impersonated tenant user.
	cookie := sessionCookieFrom(w)
	require.NotNil(t, cookie)
	claims, err := f.codec.Decode(cookie.Value)
	require.NoError(t, err)
	require.Equal(t, "user-7", claims.Subject)
	require.Equal(t, "acme", claims.TenantID)

	// Redirect drops the token, keeps everything else.
	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	require.Equal(t, "/dashboard?tab=billing", location)
	require.NotContains(t, location, raw)

	// The audit record is open.
	require.Equal(t, 1, f.records.Len())
}

func TestGateway_HandoffSecondRedemptionFailsClosed(t *testing.T) {
	f := newServerFixture(t)

	raw, _, err := f.manager.Start(t.Context(), "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)
	target := "/dashboard?" + url.Values{handoffParam: {raw}}.Encode()

	first := f.do(t, request(tenantHost, target))
	require.NotNil(t, sessionCookieFrom(first))

	second := f.do(t, request(tenantHost, target))
	require.Equal(t, http.StatusFound, second.Code)
	require.Nil(t, sessionCookieFrom(second))
	require.Equal(t, "/login", locationOf(t, second).Path)
}

func TestGateway_HandoffIgnoredWithValidSession(t *testing.T) {
	f := newServerFixture(t)

	raw, _, err := f.manager.Start(t.Context(), "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)

	existing := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", TenantID: "acme", ExpiresAt: validFor(time.Hour),
	})
	target := "/dashboard?" + url.Values{handoffParam: {raw}}.Encode()

	w := f.do(t, request(tenantHost, target, existing))

	// The existing session wins; the parameter is ignored, no new cookie.
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, sessionCookieFrom(w))
	require.Equal(t, 0, f.records.Len())
}

func TestGateway_GarbageHandoffTokenFallsThrough(t *testing.T) {
	f := newServerFixture(t)

	target := "/dashboard?" + url.Values{handoffParam: {"garbage"}}.Encode()
	w := f.do(t, request(tenantHost, target))

	// Normal unauthenticated flow: redirect to login, nothing minted.
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", locationOf(t, w).Path)
	require.Nil(t, sessionCookieFrom(w))
}

func TestAdminAPI_StartImpersonation(t *testing.T) {
	f := newServerFixture(t)
	admin := f.sessionCookie(t, token.SessionClaims{
		Subject: "admin-1", IsSuperAdmin: true, ExpiresAt: validFor(time.Hour),
	})

	body := `{"tenantId":"acme","targetUserId":"user-7","reason":"support ticket 4821","durationMinutes":60}`
	r := httptest.NewRequest(http.MethodPost, "/admin/api/impersonation/start", strings.NewReader(body))
	r.Host = baseDomain
	r.AddCookie(admin)

	w := f.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RedirectURL string `json:"redirectUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	redirect, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, "acme.app.example.com", redirect.Host)

	// The embedded token redeems on the tenant host.
	raw := redirect.Query().Get(handoffParam)
	require.NotEmpty(t, raw)
	decoded, err := f.minter.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, handoff.KindImpersonation, decoded.Kind)
	require.Equal(t, "admin-1", decoded.IssuedBy)
}

func TestAdminAPI_RejectsNonSuperAdmin(t *testing.T) {
	f := newServerFixture(t)
	user := f.sessionCookie(t, token.SessionClaims{
		Subject: "user-1", ExpiresAt: validFor(time.Hour),
	})

	body := `{"tenantId":"acme","targetUserId":"user-7","reason":"r","durationMinutes":60}`
	r := httptest.NewRequest(http.MethodPost, "/admin/api/impersonation/start", strings.NewReader(body))
	r.Host = baseDomain
	r.AddCookie(user)

	w := f.do(t, r)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminAPI_RejectsInvalidReasonAndDuration(t *testing.T) {
	f := newServerFixture(t)
	admin := f.sessionCookie(t, token.SessionClaims{
		Subject: "admin-1", IsSuperAdmin: true, ExpiresAt: validFor(time.Hour),
	})

	for _, body := range []string{
		`{"tenantId":"acme","targetUserId":"user-7","reason":"","durationMinutes":60}`,
		`{"tenantId":"acme","targetUserId":"user-7","reason":"valid","durationMinutes":5}`,
	} {
		r := httptest.NewRequest(http.MethodPost, "/admin/api/impersonation/start", strings.NewReader(body))
		r.Host = baseDomain
		r.AddCookie(admin)

		w := f.do(t, r)
		require.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
}

func TestAdminAPI_EndImpersonation(t *testing.T) {
	f := newServerFixture(t)
	admin := f.sessionCookie(t, token.SessionClaims{
		Subject: "admin-1", IsSuperAdmin: true, ExpiresAt: validFor(time.Hour),
	})

	// Open a record directly through the manager.
	_, minted, err := f.manager.Start(t.Context(), "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)
	recordID, err := f.manager.StartRecord(t.Context(), minted)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/admin/api/impersonation/"+recordID+"/end", nil)
	r.Host = baseDomain
	r.AddCookie(admin)
	w := f.do(t, r)
	require.Equal(t, http.StatusNoContent, w.Code)

	// Idempotent: ending again is still a success.
	r = httptest.NewRequest(http.MethodPost, "/admin/api/impersonation/"+recordID+"/end", nil)
	r.Host = baseDomain
	r.AddCookie(admin)
	w = f.do(t, r)
	require.Equal(t, http.StatusNoContent, w.Code)

	active, err := f.manager.IsActive(t.Context(), recordID)
	require.NoError(t, err)
	require.False(t, active)
}
