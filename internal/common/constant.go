package common

// AccessTokenHeaderName is the HTTP header that may carry the session token
// for clients that do not keep cookies.
const AccessTokenHeaderName = "access_token"

// SessionCookieName is the cookie set by /login and cleared by /logout.
const SessionCookieName = "sessao"
