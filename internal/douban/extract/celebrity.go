package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

// setProperty fills the field named by a profile label such as "性别:".
func setProperty(c *model.Celebrity, label, value string) {
	switch normLabel(label) {
	case "性别":
		c.Gender = value
	case "星座":
		c.Constellation = value
	case "出生日期":
		c.BirthDate = value
	case "去世日期":
		c.DeathDate = value
	case "生卒日期":
		if birth, death, ok := ParseLifeDates(value); ok {
			c.BirthDate = birth
			c.DeathDate = death
		}
	case "出生地":
		c.Birthplace = value
	case "职业":
		c.Role = value
	case "更多外文名":
		c.NickName = value
	case "家庭成员":
		c.Family = value
	case "IMDb编号":
		c.IMDb = value
	}
}

var celebrityRules = []rule[model.Celebrity]{
	{"image", func(root *goquery.Selection, c *model.Celebrity) {
		c.Image = attr(root, "img.avatar", "src")
	}},
	{"name", func(root *goquery.Selection, c *model.Celebrity) {
		full := text(root, "h1.subject-name")
		c.Name = ParseCelebrityName(full)
		if c.Name != "" {
			full = strings.ReplaceAll(full, c.Name, "")
		}
		c.EnglishName = strings.TrimSpace(full)
	}},
	{"properties", func(root *goquery.Selection, c *model.Celebrity) {
		root.Find("ul.subject-property>li").Each(func(_ int, li *goquery.Selection) {
			setProperty(c, text(li, "span.label"), text(li, "span.value"))
		})
	}},
	{"intro", func(root *goquery.Selection, c *model.Celebrity) {
		fragment, err := root.Find("section.subject-intro div.content").First().Html()
		if err != nil {
			return
		}
		c.Intro = FormatOverview(htmlToText(fragment))
	}},
}

// ParseCelebrity reads a celebrity profile page. ok is false when the page
// has no #content node.
func ParseCelebrity(cid string, body []byte) (model.Celebrity, bool) {
	doc, ok := parseDocument(body)
	if !ok {
		return model.Celebrity{}, false
	}
	root := doc.Find("#content").First()
	if root.Length() == 0 {
		return model.Celebrity{}, false
	}
	c := model.Celebrity{ID: cid}
	applyRules(root, &c, celebrityRules)
	return c, true
}

func normLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	s = strings.TrimSuffix(s, "：")
	return strings.TrimSpace(s)
}
