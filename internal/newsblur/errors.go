package newsblur

import "fmt"

// AuthError means the service rejected the credentials. It is fatal for the
// whole run.
type AuthError struct {
	Username string
	Detail   string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("newsblur: authentication failed for %q", e.Username)
	}
	return fmt.Sprintf("newsblur: authentication failed for %q: %s", e.Username, e.Detail)
}

// APIError means a transport or service failure on a single call. Callers
// skip the affected feed and continue. Result holds the envelope's result
// string when the call reached the service but the envelope was not "ok".
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Result     string
	Detail     string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("newsblur: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("newsblur: %s %s failed: %s", e.Method, e.Path, e.Detail)
}
