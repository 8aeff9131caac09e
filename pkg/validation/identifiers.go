package validation

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore). Flow names given on the command
// line must pass this before being resolved against the flows directory.
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// IsValidIdentifier checks that a string is non-empty and contains only
// identifier characters.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}
