package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

// infoRule reads one "label: value" line of the #info block.
type infoRule struct {
	name    string
	pattern *regexp.Regexp
	set     func(s *model.Subject, value string)
}

var infoRules = []infoRule{
	{"directors", regexp.MustCompile(`导演: (.+?)\n`), func(s *model.Subject, v string) { s.Directors = splitNames(v) }},
	{"writers", regexp.MustCompile(`编剧: (.+?)\n`), func(s *model.Subject, v string) { s.Writers = splitNames(v) }},
	{"actors", regexp.MustCompile(`主演: (.+?)\n`), func(s *model.Subject, v string) { s.Actors = splitNames(v) }},
	{"genre", regexp.MustCompile(`类型: (.+?)\n`), func(s *model.Subject, v string) { s.Genre = v }},
	{"country", regexp.MustCompile(`制片国家/地区: (.+?)\n`), func(s *model.Subject, v string) { s.Country = v }},
	{"language", regexp.MustCompile(`语言: (.+?)\n`), func(s *model.Subject, v string) { s.Language = v }},
	{"runtime", regexp.MustCompile(`片长: (.+?)\n`), func(s *model.Subject, v string) { s.Runtime = v }},
	{"screen_date", regexp.MustCompile(`(?:上映日期|首播): (.+?)\n`), func(s *model.Subject, v string) { s.ScreenDate = v }},
	{"also_known_as", regexp.MustCompile(`又名: (.+?)\n`), func(s *model.Subject, v string) { s.AlsoKnownAs = v }},
	{"site", regexp.MustCompile(`官方网站: (.+?)\n`), func(s *model.Subject, v string) { s.Site = v }},
	{"imdb", regexp.MustCompile(`(?i)IMDb: (tt\d+)`), func(s *model.Subject, v string) { s.IMDb = v }},
}

// subjectRules run against the #content node of a subject page. Name is
// resolved from the document head before they run.
var subjectRules = []rule[model.Subject]{
	{"original_name", func(root *goquery.Selection, s *model.Subject) {
		full := text(root, "h1>span:first-child")
		if s.Name != "" {
			full = strings.ReplaceAll(full, s.Name, "")
		}
		s.OriginalName = strings.TrimSpace(full)
	}},
	{"year", func(root *goquery.Selection, s *model.Subject) {
		s.Year = toInt(match(reYear, text(root, "h1>span.year")))
	}},
	{"rating", func(root *goquery.Selection, s *model.Subject) {
		s.Rating = toFloat(text(root, "div.rating_self strong.rating_num"))
	}},
	{"image", func(root *goquery.Selection, s *model.Subject) {
		s.Image = attr(root, "a.nbgnbg>img", "src")
	}},
	{"category", func(root *goquery.Selection, s *model.Subject) {
		s.Category = InferCategory(root)
	}},
	{"intro", func(root *goquery.Selection, s *model.Subject) {
		intro := root.Find("div#link-report-intra>span.all").First()
		if intro.Length() == 0 {
			intro = root.Find("div#link-report-intra>span").First()
		}
		s.Intro = FormatOverview(intro.Text())
	}},
	{"info", func(root *goquery.Selection, s *model.Subject) {
		info := root.Find("#info").First().Text()
		for _, r := range infoRules {
			if v := strings.TrimSpace(match(r.pattern, info)); v != "" {
				r.set(s, v)
			}
		}
	}},
	{"celebrities", func(root *goquery.Selection, s *model.Subject) {
		root.Find("#celebrities li.celebrity").Each(func(_ int, node *goquery.Selection) {
			c := celebrityEntry(node)
			c.Role = text(node, "div.info span.role")
			s.Celebrities = append(s.Celebrities, c)
		})
	}},
}

// InferCategory reports TV when the subject page lists episodes.
func InferCategory(root *goquery.Selection) model.Category {
	if root.Find("div.episode_list").Length() > 0 {
		return model.CategoryTV
	}
	return model.CategoryMovie
}

// ParseSubject reads a subject detail page. ok is false when the page has no
// #content node.
func ParseSubject(sid string, body []byte) (model.Subject, bool) {
	doc, ok := parseDocument(body)
	if !ok {
		return model.Subject{}, false
	}
	root := doc.Find("#content").First()
	if root.Length() == 0 {
		return model.Subject{}, false
	}
	s := newSubject()
	s.ID = sid
	s.Name = ResolveTitle(doc)
	applyRules(root, &s, subjectRules)
	return s, true
}

// ParseCelebrities reads the full cast page of a subject. Only the director
// and actor sections are kept and entries without a name are skipped.
func ParseCelebrities(body []byte) []model.Celebrity {
	out := []model.Celebrity{}
	doc, ok := parseDocument(body)
	if !ok {
		return out
	}
	doc.Find("div#celebrities>.list-wrapper").Each(func(_ int, section *goquery.Selection) {
		title := text(section, "h2")
		if !strings.Contains(title, "导演") && !strings.Contains(title, "演员") {
			return
		}
		section.Find("ul.celebrities-list li.celebrity").Each(func(_ int, node *goquery.Selection) {
			c := celebrityEntry(node)
			if c.Name == "" {
				return
			}
			c.Role, c.RoleType = ParseRole(text(node, "div.info span.role"))
			out = append(out, c)
		})
	})
	return out
}

// celebrityEntry reads the id, name and avatar shared by every celebrity list item.
func celebrityEntry(node *goquery.Selection) model.Celebrity {
	style := strings.TrimRight(attr(node, "div.avatar", "style"), "; ")
	return model.Celebrity{
		ID:    match(reID, attr(node, "div.info a.name", "href")),
		Name:  ParseCelebrityName(text(node, "div.info a.name")),
		Image: strings.Trim(match(reBackgroundImage, style), `'"`),
	}
}
