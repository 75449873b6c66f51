package douban

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/douban/extract"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

// Search returns the movie and TV subjects matching keyword. Subjects that
// have not aired yet are excluded. The error is non-nil only when ctx ends.
func (c *Client) Search(ctx context.Context, keyword string) ([]model.Subject, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []model.Subject{}, nil
	}
	subjects, _, err := remember(ctx, c, opSearch, cacheKey(opSearch, keyword), c.cfg.SearchTTL,
		func(ctx context.Context) ([]model.Subject, bool, error) {
			target := c.cfg.BaseURL + "/search?" + url.Values{"cat": {"1002"}, "q": {keyword}}.Encode()
			page, ok, err := c.fetchOK(ctx, opSearch, keyword, target, nil)
			if err != nil || !ok {
				return []model.Subject{}, false, err
			}
			subjects := extract.ParseSearch(page.Body)
			if len(subjects) == 0 {
				c.warnEmpty(opSearch, keyword)
			}
			return subjects, true, nil
		})
	if err != nil {
		return nil, err
	}
	return nonNil(subjects), nil
}

// SearchMovies is Search restricted to movies.
func (c *Client) SearchMovies(ctx context.Context, keyword string) ([]model.Subject, error) {
	return c.searchCategory(ctx, keyword, model.CategoryMovie)
}

// SearchTV is Search restricted to TV series.
func (c *Client) SearchTV(ctx context.Context, keyword string) ([]model.Subject, error) {
	return c.searchCategory(ctx, keyword, model.CategoryTV)
}

func (c *Client) searchCategory(ctx context.Context, keyword string, category model.Category) ([]model.Subject, error) {
	all, err := c.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	out := make([]model.Subject, 0, len(all))
	for _, s := range all {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out, nil
}

// Suggest queries the quick-suggest JSON endpoint. Any failure, including a
// malformed payload, is logged and yields an empty list.
func (c *Client) Suggest(ctx context.Context, keyword string) ([]model.Subject, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []model.Subject{}, nil
	}
	subjects, _, err := remember(ctx, c, opSuggest, cacheKey(opSuggest, keyword), c.cfg.SearchTTL,
		func(ctx context.Context) ([]model.Subject, bool, error) {
			target := c.cfg.BaseURL + "/j/search_suggest?" + url.Values{"q": {keyword}}.Encode()
			headers := http.Header{
				"Origin":  {c.cfg.BaseURL},
				"Referer": {c.cfg.BaseURL + "/"},
			}
			page, ok, err := c.fetchOK(ctx, opSuggest, keyword, target, headers)
			if err != nil || !ok {
				return []model.Subject{}, false, err
			}
			subjects, err := extract.ParseSuggest(page.Body)
			if err != nil {
				c.logger.Warn("Failed to decode quick-suggest response",
					zap.String("argument", keyword),
					zap.Error(err),
				)
				return []model.Subject{}, false, nil
			}
			return subjects, true, nil
		})
	if err != nil {
		return nil, err
	}
	return nonNil(subjects), nil
}

// SearchCelebrities returns the people matching keyword.
func (c *Client) SearchCelebrities(ctx context.Context, keyword string) ([]model.Celebrity, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []model.Celebrity{}, nil
	}
	celebrities, _, err := remember(ctx, c, opSearchCelebrity, cacheKey(opSearchCelebrity, keyword), c.cfg.CelebritySearchTTL,
		func(ctx context.Context) ([]model.Celebrity, bool, error) {
			target := c.cfg.MovieBaseURL + "/celebrities/search?" + url.Values{"search_text": {keyword}}.Encode()
			page, ok, err := c.fetchOK(ctx, opSearchCelebrity, keyword, target, nil)
			if err != nil || !ok {
				return []model.Celebrity{}, false, err
			}
			celebrities := extract.ParseCelebritySearch(page.Body)
			if len(celebrities) == 0 {
				c.warnEmpty(opSearchCelebrity, keyword)
			}
			return celebrities, true, nil
		})
	if err != nil {
		return nil, err
	}
	return nonNil(celebrities), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
