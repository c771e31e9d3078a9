package chi

import (
	"crypto/subtle"
	"net/http"
)

// exemptPaths skip authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BasicAuthMiddleware gates every non-exempt path behind HTTP basic auth.
// If users is empty, authentication is disabled (pass-through).
func BasicAuthMiddleware(users map[string]string, realm string) func(http.Handler) http.Handler {
	valid := make(map[string]string, len(users))
	for name, pass := range users {
		if name != "" && pass != "" {
			valid[name] = pass
		}
	}
	if realm == "" {
		realm = "Login Required"
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			name, pass, ok := r.BasicAuth()
			if !ok || !checkUser(valid, name, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "could not verify your access level")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkUser compares passwords in constant time.
func checkUser(users map[string]string, name, pass string) bool {
	want, ok := users[name]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1
}
