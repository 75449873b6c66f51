package douban

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/douban/extract"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

// loginRedirectMarkers in the final URL of the /mine/ probe mean the session
// is not authenticated.
var loginRedirectMarkers = []string{"accounts.douban.com", "login", "sec.douban.com"}

// GetLoginInfo probes the profile page. It is never cached and never fails:
// any problem, cancellation included, reports a logged-out session.
func (c *Client) GetLoginInfo(ctx context.Context) model.LoginInfo {
	page, ok, err := c.fetchOK(ctx, opLogin, "", c.cfg.BaseURL+"/mine/", nil)
	if err != nil {
		c.logger.Debug("Login probe canceled", zap.Error(err))
		return model.LoginInfo{}
	}
	if !ok {
		return model.LoginInfo{}
	}
	for _, marker := range loginRedirectMarkers {
		if strings.Contains(page.FinalURL, marker) {
			return model.LoginInfo{}
		}
	}
	return model.LoginInfo{
		Name:     extract.ParseLoginName(page.Body),
		LoggedIn: true,
	}
}

// CheckLogin reports whether the configured cookie is an authenticated session.
func (c *Client) CheckLogin(ctx context.Context) bool {
	return c.GetLoginInfo(ctx).LoggedIn
}
