package client

import (
	"net/http"
)

// DefaultSessionCookies are the cookie names handed to the CookieSink.
var DefaultSessionCookies = []string{"auth", "twoFactorAuth"}

// CookieSink receives session cookies found on responses. The client does
// not store or interpret them.
type CookieSink interface {
	HandleCookies(cookies []*http.Cookie)
}

// CookieSinkFunc adapts a function to CookieSink.
type CookieSinkFunc func(cookies []*http.Cookie)

// HandleCookies calls f(cookies).
func (f CookieSinkFunc) HandleCookies(cookies []*http.Cookie) {
	f(cookies)
}

// sessionCookies returns the cookies whose name is in names. An empty names
// list selects every cookie.
func sessionCookies(cookies []*http.Cookie, names []string) []*http.Cookie {
	if len(names) == 0 {
		return cookies
	}
	var out []*http.Cookie
	for _, c := range cookies {
		for _, name := range names {
			if c.Name == name {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
