package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

const unairedMarker = "尚未播出"

// searchResultRules fill a Subject from one "div.result-list .result" item.
var searchResultRules = []rule[model.Subject]{
	{"id", func(item *goquery.Selection, s *model.Subject) {
		s.ID = match(reSid, attr(item, "div.title a", "onclick"))
	}},
	{"name", func(item *goquery.Selection, s *model.Subject) {
		s.Name = text(item, "div.title a")
	}},
	{"rating", func(item *goquery.Selection, s *model.Subject) {
		s.Rating = toFloat(text(item, "div.rating-info>.rating_nums"))
	}},
	{"image", func(item *goquery.Selection, s *model.Subject) {
		s.Image = attr(item, "a.nbg>img", "src")
	}},
	{"year", func(item *goquery.Selection, s *model.Subject) {
		s.Year = toInt(match(reYear, text(item, "div.rating-info>span:last-child")))
	}},
	{"original_name", func(item *goquery.Selection, s *model.Subject) {
		s.OriginalName = strings.TrimSpace(match(reOriginalName, text(item, "div.rating-info>span:last-child")))
		if s.OriginalName == "" {
			s.OriginalName = s.Name
		}
	}},
	{"intro", func(item *goquery.Selection, s *model.Subject) {
		s.Intro = text(item, "div.content>p")
	}},
}

// ParseSearch reads the subject search page. Entries that have not aired yet
// and categories other than movie and TV are dropped.
func ParseSearch(body []byte) []model.Subject {
	out := []model.Subject{}
	doc, ok := parseDocument(body)
	if !ok {
		return out
	}
	doc.Find("div.result-list .result").Each(func(_ int, item *goquery.Selection) {
		if strings.Contains(text(item, "div.rating-info"), unairedMarker) {
			return
		}
		label := match(reCategory, text(item, "div.title>h3>span"))
		category, ok := model.CategoryFromLabel(label)
		if !ok {
			return
		}
		s := newSubject()
		s.Category = category
		s.Genre = label
		applyRules(item, &s, searchResultRules)
		out = append(out, s)
	})
	return out
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type suggestResult struct {
	Cards []struct {
		Type  string     `json:"type"`
		Sid   flexString `json:"sid"`
		Title string     `json:"title"`
		Year  flexString `json:"year"`
	} `json:"cards"`
}

// ParseSuggest reads the quick-suggest JSON, keeping only cards of type "movie".
func ParseSuggest(body []byte) ([]model.Subject, error) {
	out := []model.Subject{}
	var result suggestResult
	if err := json.Unmarshal(body, &result); err != nil {
		return out, fmt.Errorf("decode suggest response: %w", err)
	}
	for _, card := range result.Cards {
		if card.Type != "movie" {
			continue
		}
		s := newSubject()
		s.ID = string(card.Sid)
		s.Name = strings.TrimSpace(card.Title)
		s.Year = toInt(string(card.Year))
		out = append(out, s)
	}
	return out, nil
}

// ParseCelebritySearch reads the celebrity search page.
func ParseCelebritySearch(body []byte) []model.Celebrity {
	out := []model.Celebrity{}
	doc, ok := parseDocument(body)
	if !ok {
		return out
	}
	doc.Find("div.article .result").Each(func(_ int, item *goquery.Selection) {
		name := text(item, "h3>a")
		if fields := strings.Fields(name); len(fields) > 1 {
			name = fields[0]
		}
		out = append(out, model.Celebrity{
			ID:    match(reID, attr(item, "h3>a", "href")),
			Name:  name,
			Image: attr(item, "div.pic img", "src"),
		})
	})
	return out
}

func newSubject() model.Subject {
	return model.Subject{
		Directors:   []string{},
		Writers:     []string{},
		Actors:      []string{},
		Celebrities: []model.Celebrity{},
	}
}
