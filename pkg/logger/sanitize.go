package logger

import (
	"strings"
)

// sensitiveParams are query parameter names whose values must never land
// in a log line. Verification links carry tokens in the query string.
var sensitiveParams = []string{"token", "password", "secret", "key"}

// SanitizeQueryString reports whether a raw query string carries a
// sensitive parameter and should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	lowered := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(lowered, param+"=") {
			return true
		}
	}
	return false
}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		// Keep only the TLD readable
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}
