package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/douban"
	"github.com/JakeFAU/douban-harvester/internal/douban/model"
	"github.com/JakeFAU/douban-harvester/internal/fetcher"
	"github.com/JakeFAU/douban-harvester/internal/policy/ratelimit"
)

const suggestBody = `{"cards":[{"type":"movie","sid":"1292052","title":"肖申克的救赎","year":"1994"}]}`

// MockApp mocks the App interface.
type MockApp struct {
	mock.Mock
	client *douban.Client
}

func (m *MockApp) Close() { m.Called() }

func (m *MockApp) Logger() *zap.Logger { return zap.NewNop() }

func (m *MockApp) Client() *douban.Client { return m.client }

func (m *MockApp) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type stubFetcher struct {
	pages map[string]fetcher.Page
}

func (f stubFetcher) Fetch(_ context.Context, req fetcher.Request) (fetcher.Page, error) {
	for prefix, page := range f.pages {
		if strings.Contains(req.URL, prefix) {
			page.URL = req.URL
			return page, nil
		}
	}
	return fetcher.Page{URL: req.URL, StatusCode: http.StatusNotFound, Outcome: fetcher.OutcomeFailure}, nil
}

type openLimiter struct{}

func (openLimiter) Admit(context.Context, ratelimit.Policy) error { return nil }

func newMockApp(t *testing.T, pages map[string]fetcher.Page) *MockApp {
	t.Helper()
	client, err := douban.New(douban.Config{}, douban.Deps{
		Fetcher: stubFetcher{pages: pages},
		Limiter: openLimiter{},
	})
	require.NoError(t, err)
	return &MockApp{client: client}
}

// execute swaps the app factory for the duration of one command run.
func execute(t *testing.T, a App, args ...string) (string, error) {
	t.Helper()
	prev := newApp
	newApp = func(string) (App, error) { return a, nil }
	t.Cleanup(func() { newApp = prev })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSuggestCommandPrintsJSON(t *testing.T) {
	a := newMockApp(t, map[string]fetcher.Page{
		"/j/search_suggest": {StatusCode: http.StatusOK, Body: []byte(suggestBody), Outcome: fetcher.OutcomeSuccess},
	})
	a.On("Close").Return().Once()

	out, err := execute(t, a, "suggest", "肖申克")
	require.NoError(t, err)

	var got []model.Subject
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	require.Equal(t, "1292052", got[0].ID)
	a.AssertExpectations(t)
}

func TestSubjectCommandPrintsNullWhenAbsent(t *testing.T) {
	a := newMockApp(t, nil)
	a.On("Close").Return()

	out, err := execute(t, a, "subject", "404")
	require.NoError(t, err)
	require.Equal(t, "null\n", out)
}

func TestCelebrityCommandSurfacesErrors(t *testing.T) {
	a := newMockApp(t, map[string]fetcher.Page{
		"/celebrity/500/": {StatusCode: http.StatusInternalServerError, Outcome: fetcher.OutcomeFailure},
	})
	a.On("Close").Return()

	_, err := execute(t, a, "celebrity", "500")
	require.ErrorContains(t, err, "celebrity")
}

func TestSearchCommandRejectsUnknownCategory(t *testing.T) {
	a := newMockApp(t, nil)
	a.On("Close").Return()

	_, err := execute(t, a, "search", "x", "--category", "book")
	require.ErrorContains(t, err, "unknown category")
}

func TestLoginCommand(t *testing.T) {
	a := newMockApp(t, map[string]fetcher.Page{
		"/mine/": {
			StatusCode: http.StatusOK,
			FinalURL:   "https://accounts.douban.com/passport/login",
			Outcome:    fetcher.OutcomeSuccess,
		},
	})
	a.On("Close").Return()

	out, err := execute(t, a, "login")
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"","logged_in":false}`, out)
}

func TestServeCommandRunsApp(t *testing.T) {
	a := newMockApp(t, nil)
	a.On("Run", mock.Anything).Return(errors.New("port in use")).Once()

	_, err := execute(t, a, "serve")
	require.ErrorContains(t, err, "port in use")
	a.AssertExpectations(t)
	a.AssertNotCalled(t, "Close")
}

func TestAppInitFailure(t *testing.T) {
	prev := newApp
	newApp = func(string) (App, error) { return nil, errors.New("bad config") }
	t.Cleanup(func() { newApp = prev })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"login"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "failed to initialize application services")
}

func TestLookupWithoutApp(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
