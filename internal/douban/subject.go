package douban

import (
	"context"
	"strings"

	"github.com/JakeFAU/douban-harvester/internal/douban/extract"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

// GetSubject returns the detail record for sid. found is false when the page
// could not be fetched or has no subject content.
func (c *Client) GetSubject(ctx context.Context, sid string) (model.Subject, bool, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return model.Subject{}, false, nil
	}
	return remember(ctx, c, opSubject, cacheKey(opSubject, sid), c.cfg.DetailTTL,
		func(ctx context.Context) (model.Subject, bool, error) {
			page, ok, err := c.fetchOK(ctx, opSubject, sid, c.cfg.MovieBaseURL+"/subject/"+sid+"/", nil)
			if err != nil || !ok {
				return model.Subject{}, false, err
			}
			subject, found := extract.ParseSubject(sid, page.Body)
			if !found {
				c.warnEmpty(opSubject, sid)
			}
			return subject, found, nil
		})
}

// GetCelebrities returns the directors and actors listed on the subject's
// full credits page.
func (c *Client) GetCelebrities(ctx context.Context, sid string) ([]model.Celebrity, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return []model.Celebrity{}, nil
	}
	celebrities, _, err := remember(ctx, c, opCelebrities, cacheKey(opCelebrities, sid), c.cfg.DetailTTL,
		func(ctx context.Context) ([]model.Celebrity, bool, error) {
			page, ok, err := c.fetchOK(ctx, opCelebrities, sid, c.cfg.MovieBaseURL+"/subject/"+sid+"/celebrities", nil)
			if err != nil || !ok {
				return []model.Celebrity{}, false, err
			}
			celebrities := extract.ParseCelebrities(page.Body)
			if len(celebrities) == 0 {
				c.warnEmpty(opCelebrities, sid)
			}
			return celebrities, true, nil
		})
	if err != nil {
		return nil, err
	}
	return nonNil(celebrities), nil
}
