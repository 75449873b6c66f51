package douban

import (
	"context"
	"strings"

	"github.com/JakeFAU/douban-harvester/internal/douban/extract"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

const subjectPhotoQuery = "type=W&start=0&sortby=size&size=a&subtype=a"

// GetCelebrityPhotos returns the celebrity's photo gallery.
func (c *Client) GetCelebrityPhotos(ctx context.Context, cid string) ([]model.Photo, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return []model.Photo{}, nil
	}
	return c.photos(ctx, opCelebrityPhotos, cid,
		c.cfg.MovieBaseURL+"/celebrity/"+cid+"/photos/",
		extract.ParseCelebrityPhotos)
}

// GetSubjectPhotos returns the subject's wallpapers, largest first.
func (c *Client) GetSubjectPhotos(ctx context.Context, sid string) ([]model.Photo, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return []model.Photo{}, nil
	}
	return c.photos(ctx, opSubjectPhotos, sid,
		c.cfg.MovieBaseURL+"/subject/"+sid+"/photos?"+subjectPhotoQuery,
		extract.ParseSubjectPhotos)
}

func (c *Client) photos(ctx context.Context, op, id, target string, parse func([]byte) []model.Photo) ([]model.Photo, error) {
	photos, _, err := remember(ctx, c, op, cacheKey(op, id), c.cfg.DetailTTL,
		func(ctx context.Context) ([]model.Photo, bool, error) {
			page, ok, err := c.fetchOK(ctx, op, id, target, nil)
			if err != nil || !ok {
				return []model.Photo{}, false, err
			}
			photos := parse(page.Body)
			if len(photos) == 0 {
				c.warnEmpty(op, id)
			}
			return photos, true, nil
		})
	if err != nil {
		return nil, err
	}
	return nonNil(photos), nil
}
