package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

const defaultImageHost = "img2"

// ParseCelebrityPhotos reads a celebrity gallery. Raw is the thumbnail URL as
// served; Douban does not expose the other sizes on this page.
func ParseCelebrityPhotos(body []byte) []model.Photo {
	out := []model.Photo{}
	doc, ok := parseDocument(body)
	if !ok {
		return out
	}
	doc.Find(".poster-col3>li").Each(func(_ int, node *goquery.Selection) {
		p := model.Photo{
			ID:   match(rePhotoID, attr(node, "a", "href")),
			Raw:  attr(node, "img", "src"),
			Size: text(node, "div.prop"),
		}
		p.Width, p.Height = ParseDimensions(p.Size)
		out = append(out, p)
	})
	return out
}

// ParseSubjectPhotos reads a subject wallpaper gallery and synthesizes the
// four resolution URLs from the image host of the thumbnail.
func ParseSubjectPhotos(body []byte) []model.Photo {
	out := []model.Photo{}
	doc, ok := parseDocument(body)
	if !ok {
		return out
	}
	doc.Find(".poster-col3>li").Each(func(_ int, node *goquery.Selection) {
		id, _ := node.Attr("data-id")
		host := match(reImageHost, attr(node, "img", "src"))
		if host == "" {
			host = defaultImageHost
		}
		p := model.Photo{
			ID:     id,
			Size:   text(node, "div.prop"),
			Small:  photoURL(host, "s", id),
			Medium: photoURL(host, "m", id),
			Large:  photoURL(host, "l", id),
			Raw:    photoURL(host, "raw", id),
		}
		p.Width, p.Height = ParseDimensions(p.Size)
		out = append(out, p)
	})
	return out
}

func photoURL(host, size, id string) string {
	return fmt.Sprintf("https://%s.doubanio.com/view/photo/%s/public/p%s.jpg", host, size, id)
}
