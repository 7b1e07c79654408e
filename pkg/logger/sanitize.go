package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e******.com")
func SanitizedEmail(email string) string {
	username, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(username) > 1 {
		username = username[:1] + strings.Repeat("*", len(username)-1)
	}

	// Mask every domain label except the TLD
	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return username + "@" + strings.Join(labels, ".")
}

var sensitiveParams = []string{
	"password", "token", "secret", "api_key", "apikey", "email", "auth", "csrf",
}

// SanitizeQueryString reports whether a query string mentions a sensitive parameter
// and should be redacted as a whole
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
