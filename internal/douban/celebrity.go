package douban

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/douban-harvester/internal/douban/extract"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
	"github.com/JakeFAU/douban-harvester/internal/fetcher"
)

// GetCelebrity returns the profile for cid. Unlike the other lookups, a
// transport failure or an error status is returned to the caller and is not
// cached. A risk-control block is still absorbed and cached as not found.
func (c *Client) GetCelebrity(ctx context.Context, cid string) (model.Celebrity, bool, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return model.Celebrity{}, false, nil
	}
	return remember(ctx, c, opCelebrity, cacheKey(opCelebrity, cid), c.cfg.DetailTTL,
		func(ctx context.Context) (model.Celebrity, bool, error) {
			page, err := c.fetch(ctx, opCelebrity, c.cfg.MovieBaseURL+"/celebrity/"+cid+"/", nil)
			if err != nil {
				return model.Celebrity{}, false, fmt.Errorf("get celebrity %s: %w", cid, err)
			}
			switch page.Outcome {
			case fetcher.OutcomeSuccess:
			case fetcher.OutcomeBlocked:
				c.warnBlocked(opCelebrity, cid, page)
				return model.Celebrity{}, false, nil
			default:
				return model.Celebrity{}, false, fmt.Errorf("get celebrity %s: %w", cid, page.Err())
			}
			celebrity, found := extract.ParseCelebrity(cid, page.Body)
			if !found {
				c.warnEmpty(opCelebrity, cid)
			}
			return celebrity, found, nil
		})
}
