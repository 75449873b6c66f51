package extract

import (
	"html"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const siteAttribution = "©豆瓣"

// ParseCelebrityName picks a single display name out of Douban's mixed
// rendering, which usually shows the Chinese name followed by the original.
//
//	"成龙 Jackie Chan"     -> "成龙"
//	"Tom Hanks Tom Hanks" -> "Tom Hanks"
//	"Stephen"             -> "Stephen"
func ParseCelebrityName(raw string) string {
	raw = strings.TrimSpace(raw)
	idx := strings.Index(raw, " ")
	if idx < 0 {
		return raw
	}

	first := raw[:idx]
	if hasHan(first) {
		return strings.TrimSpace(first)
	}

	// An untranslated name is sometimes printed twice.
	if next := indexFold(raw[idx:], first); next >= 0 {
		return strings.TrimSpace(raw[:idx+next])
	}
	return raw
}

// ParseRole splits a credit such as "演员 Actor (饰 安迪)" into the played
// role and the leading role type. Without a parenthesized detail the type
// doubles as the role.
func ParseRole(raw string) (role, roleType string) {
	raw = strings.TrimSpace(raw)
	if fields := strings.Fields(raw); len(fields) > 0 {
		roleType = fields[0]
	}
	role = strings.TrimSpace(match(reRole, raw))
	if role == "" {
		role = roleType
	}
	return role, roleType
}

// ParseLifeDates splits "<birth> 至 <death>". ok is false when the value does
// not have that shape.
func ParseLifeDates(raw string) (birth, death string, ok bool) {
	m := reLifeDates.FindStringSubmatch(raw)
	if len(m) < 3 {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// ParseDimensions reads a "<width>x<height>" token. Anything else yields zeros.
func ParseDimensions(raw string) (width, height int) {
	parts := strings.Split(strings.TrimSpace(raw), "x")
	if len(parts) != 2 {
		return 0, 0
	}
	return toInt(parts[0]), toInt(parts[1])
}

// FormatOverview drops the site attribution and the indentation Douban puts
// after each line break.
func FormatOverview(raw string) string {
	raw = strings.ReplaceAll(raw, siteAttribution, "")
	return strings.TrimSpace(reOverviewSpace.ReplaceAllString(raw, "\n"))
}

// ResolveTitle prefers the first keyword in the keywords meta tag and falls
// back to the page title without the "(豆瓣)" suffix.
func ResolveTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	if keywords, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		first, _, _ := strings.Cut(keywords, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	title := doc.Find("title").First().Text()
	return strings.TrimSpace(strings.ReplaceAll(title, "(豆瓣)", ""))
}

// htmlToText keeps paragraph breaks as newlines and removes the remaining markup.
func htmlToText(fragment string) string {
	fragment = strings.ReplaceAll(fragment, "</p>", "\n")
	fragment = strings.ReplaceAll(fragment, "<br>", "\n")
	fragment = strings.ReplaceAll(fragment, "<br/>", "\n")
	return html.UnescapeString(reHTMLTag.ReplaceAllString(fragment, ""))
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// indexFold is a case-insensitive strings.Index.
func indexFold(s, substr string) int {
	if substr == "" {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
