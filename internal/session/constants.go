// Package session holds the signed-in user's backend credentials. A session
// is created at login, read by every screen through the request context, and
// never modified afterwards.
package session

const (
	// CookieName is the name of the cookie that stores the session id.
	CookieName = "jssp_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"
)
