package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactName reduces a personal name to initials.
// "Jo Bloggs" → "J. B."
func RedactName(name string) string {
	parts := strings.Fields(name)
	initials := make([]string, 0, len(parts))
	for _, p := range parts {
		r := []rune(p)
		initials = append(initials, string(r[0])+".")
	}
	return strings.Join(initials, " ")
}
