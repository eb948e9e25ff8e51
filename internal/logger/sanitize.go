package logger

import "strings"

// Sanitize strips angle brackets and control characters from a value
// before it may be logged. Keeps log lines single line and markup free.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '<' || r == '>':
			continue
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Email masks the local part of an email so logs never carry full identities
func Email(s string) string {
	local, domain, found := strings.Cut(s, "@")
	if !found {
		return "***"
	}

	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return Sanitize(local + "@" + domain)
}
