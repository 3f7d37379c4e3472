package config

type CookieConfig interface {
	GetCookieName() string
	GetHandoffParam() string
}

type Cookie struct{}

var _ CookieConfig = Cookie{}

// GetCookieName returns the name of the session cookie holding the signed
// session token.
func (Cookie) GetCookieName() string {
	return GetEnv("COOKIE_NAME", "Authentication")
}

// GetHandoffParam returns the query parameter name carrying a secure
// handoff token into a target domain.
func (Cookie) GetHandoffParam() string {
	return GetEnv("HANDOFF_PARAM", "secureLoginToken")
}
