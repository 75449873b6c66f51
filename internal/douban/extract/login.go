package extract

import (
	"html"
	"strings"
)

// ParseLoginName returns the account name shown on the /mine/ profile header.
func ParseLoginName(body []byte) string {
	return strings.TrimSpace(html.UnescapeString(match(reLoginName, string(body))))
}
