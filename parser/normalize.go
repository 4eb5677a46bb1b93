package parser

import (
	"regexp"
	"strings"
)

var domainToken = regexp.MustCompile(`\S*\.com\S*`)

// StripSchemeSlashes removes the first "//" from protocol-relative URLs.
func StripSchemeSlashes(u string) string {
	return strings.Replace(u, "//", "", 1)
}

// Nullable maps blank strings to nil so they serialize as JSON null.
func Nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// JoinLines joins values with newlines and trims the result.
func JoinLines(values ...string) string {
	return strings.TrimSpace(strings.Join(values, "\n"))
}

// SplitContacts pulls ".com" tokens out of free text and separates them into
// websites and email addresses.
func SplitContacts(text string) (websites, emails []string) {
	for _, token := range domainToken.FindAllString(text, -1) {
		if strings.Contains(token, "@") {
			emails = append(emails, token)
		} else {
			websites = append(websites, token)
		}
	}
	return websites, emails
}
