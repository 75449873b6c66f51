// Package extract turns Douban pages into model records.
//
// Parsers are pure functions of the page body. Every field is optional: a
// missing selector or an unmatched pattern leaves the zero value and never
// aborts the record. Page shapes are described as tables of named rules so
// each rule can be exercised on its own against a fixture document.
package extract

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reID              = regexp.MustCompile(`/(\d+?)/`)
	reSid             = regexp.MustCompile(`sid: (\d+?),`)
	reCategory        = regexp.MustCompile(`\[(.+?)\]`)
	reYear            = regexp.MustCompile(`([12][890][0-9][0-9])`)
	reOriginalName    = regexp.MustCompile(`原名[:：](.+?)\s*?/`)
	reRole            = regexp.MustCompile(`\([饰|配]?\s*?(.+?)\)`)
	reBackgroundImage = regexp.MustCompile(`url\(([^)]+?)\)$`)
	reLifeDates       = regexp.MustCompile(`(.+?) 至 (.+)`)
	reImageHost       = regexp.MustCompile(`//(img\d+?)\.`)
	reOverviewSpace   = regexp.MustCompile(`\n[\t\v\f\r\x{85}\p{Z}]+`)
	reHTMLTag         = regexp.MustCompile(`<[^>]+>`)
	rePhotoID         = regexp.MustCompile(`/photo/(\d+?)/`)
	reLoginName       = regexp.MustCompile(`<div[^>]*?db-usr-profile[^>]*?>[\w\W]*?<h1>([^>]*?)<`)
)

// rule is one named extraction step against a document subtree.
type rule[T any] struct {
	name  string
	apply func(root *goquery.Selection, rec *T)
}

func applyRules[T any](root *goquery.Selection, rec *T, rules []rule[T]) {
	for _, r := range rules {
		r.apply(root, rec)
	}
}

func parseDocument(body []byte) (*goquery.Document, bool) {
	if len(body) == 0 {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// text returns the trimmed text of the first match of css under sel.
func text(sel *goquery.Selection, css string) string {
	return strings.TrimSpace(sel.Find(css).First().Text())
}

// attr returns the trimmed attribute of the first match of css under sel.
func attr(sel *goquery.Selection, css, name string) string {
	v, _ := sel.Find(css).First().Attr(name)
	return strings.TrimSpace(v)
}

// match returns the first capture group of re in s, or "".
func match(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func toInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// splitNames splits a " / " separated credit line.
func splitNames(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
