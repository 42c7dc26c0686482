package middleware

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieConfig controls the attributes of the token cookies. Both cookies
// are always HttpOnly.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
	// RefreshPath narrows the refresh cookie to the refresh/logout routes.
	// Empty means Path.
	RefreshPath string
}

// DefaultCookieConfig returns secure defaults for a same-site deployment.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) refreshPath() string {
	if c.RefreshPath != "" {
		return c.RefreshPath
	}
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// SetTokenCookies writes the access and refresh cookies for pair. Cookie
// lifetimes follow the token expiries.
func SetTokenCookies(w http.ResponseWriter, pair *authcore.TokenPair, cfg CookieConfig) {
	if pair == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    pair.AccessToken,
		Path:     cfg.path(),
		Domain:   cfg.Domain,
		Expires:  pair.AccessExpiresAt,
		MaxAge:   maxAge(pair.AccessExpiresAt),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     cfg.refreshPath(),
		Domain:   cfg.Domain,
		Expires:  pair.RefreshExpiresAt,
		MaxAge:   maxAge(pair.RefreshExpiresAt),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	})
}

// ClearTokenCookies expires both cookies. Logout calls it whether or not the
// refresh token still decoded.
func ClearTokenCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, c := range []struct{ name, path string }{
		{AccessCookieName, cfg.path()},
		{RefreshCookieName, cfg.refreshPath()},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   cfg.Domain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   cfg.Secure,
			HttpOnly: true,
			SameSite: cfg.SameSite,
		})
	}
}

// RefreshToken reads the refresh cookie.
func RefreshToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func maxAge(expires time.Time) int {
	secs := int(time.Until(expires).Seconds())
	if secs < 1 {
		return -1
	}
	return secs
}
