package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// CookieName is the session cookie carrying the token.
const CookieName = "token"

// Session issues tokens and hands them to the client over the configured
// transports: the response body (for use as a bearer header) and/or an
// httpOnly cookie.
type Session struct {
	Issuer       *TokenIssuer
	Header       bool
	Cookie       bool
	CookieTTL    time.Duration
	CookieSecure bool
}

// Start issues a token for the account, sets the cookie when enabled and
// returns the token to place in the response body. The returned token is
// empty when header transport is disabled.
func (s *Session) Start(c echo.Context, userID string, role Role) (string, error) {
	token, _, err := s.Issuer.Issue(userID, role)
	if err != nil {
		return "", err
	}

	if s.Cookie {
		c.SetCookie(&http.Cookie{
			Name:     CookieName,
			Value:    token,
			Path:     "/",
			Expires:  time.Now().Add(s.CookieTTL),
			MaxAge:   int(s.CookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   s.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if !s.Header {
		return "", nil
	}
	return token, nil
}

// End clears the session cookie. Issued tokens stay valid until they expire.
func (s *Session) End(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "none",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Guard returns the Access Guard configuration matching this session's
// transports.
func (s *Session) Guard(skipper func(echo.Context) bool) GuardConfig {
	return GuardConfig{
		Verifier:   s.Issuer,
		FromHeader: s.Header,
		FromCookie: s.Cookie,
		CookieName: CookieName,
		Skipper:    skipper,
	}
}
