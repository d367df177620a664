package api

import "net/http"

// APIKeyAuth guards routes with an X-API-Key header check. With a
// configured key, requests must present it exactly. A request carrying
// a key against a server with none configured is rejected rather than
// silently accepted. With no key on either side the check is a no-op.
func APIKeyAuth(configuredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-API-Key")

			switch {
			case configuredKey == "" && presented == "":
				next.ServeHTTP(w, r)
			case configuredKey == "":
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error": "API Key authentication is enabled but not configured on the server.",
				})
			case presented != configuredKey:
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error": "Invalid API Key.",
				})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
