package logging

import "strings"

// RedactEmail keeps the first two characters of the local part and the
// domain: "alice@example.com" becomes "al***@example.com".
func RedactEmail(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}
	return local + "@" + domain
}
