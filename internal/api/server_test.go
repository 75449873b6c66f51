package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/douban/model"
)

type fakeLookup struct {
	mu    sync.Mutex
	calls []string

	subjects    []model.Subject
	subject     model.Subject
	found       bool
	celebrity   model.Celebrity
	celebErr    error
	photos      []model.Photo
	celebrities []model.Celebrity
	login       model.LoginInfo
	block       bool
}

func (f *fakeLookup) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeLookup) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeLookup) Search(ctx context.Context, keyword string) ([]model.Subject, error) {
	f.record("search:" + keyword)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.subjects, nil
}

func (f *fakeLookup) SearchMovies(_ context.Context, keyword string) ([]model.Subject, error) {
	f.record("movies:" + keyword)
	return f.subjects, nil
}

func (f *fakeLookup) SearchTV(_ context.Context, keyword string) ([]model.Subject, error) {
	f.record("tv:" + keyword)
	return f.subjects, nil
}

func (f *fakeLookup) Suggest(_ context.Context, keyword string) ([]model.Subject, error) {
	f.record("suggest:" + keyword)
	return f.subjects, nil
}

func (f *fakeLookup) GetSubject(_ context.Context, sid string) (model.Subject, bool, error) {
	f.record("subject:" + sid)
	return f.subject, f.found, nil
}

func (f *fakeLookup) GetCelebrities(_ context.Context, sid string) ([]model.Celebrity, error) {
	f.record("celebrities:" + sid)
	return f.celebrities, nil
}

func (f *fakeLookup) GetCelebrity(_ context.Context, cid string) (model.Celebrity, bool, error) {
	f.record("celebrity:" + cid)
	return f.celebrity, f.found, f.celebErr
}

func (f *fakeLookup) GetCelebrityPhotos(_ context.Context, cid string) ([]model.Photo, error) {
	f.record("celebrity_photos:" + cid)
	return f.photos, nil
}

func (f *fakeLookup) GetSubjectPhotos(_ context.Context, sid string) ([]model.Photo, error) {
	f.record("subject_photos:" + sid)
	return f.photos, nil
}

func (f *fakeLookup) SearchCelebrities(_ context.Context, keyword string) ([]model.Celebrity, error) {
	f.record("search_celebrities:" + keyword)
	return f.celebrities, nil
}

func (f *fakeLookup) GetLoginInfo(context.Context) model.LoginInfo {
	f.record("login")
	return f.login
}

type fakeIDGen struct{ id string }

func (g fakeIDGen) NewID() (string, error) { return g.id, nil }

func do(t *testing.T, s *Server, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := do(t, NewServer(&fakeLookup{}, zap.NewNop(), Options{}), "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeLookup{}, zap.NewNop(), Options{})
	do(t, s, "/healthz", nil)
	rec := do(t, s, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_SearchRoutesByCategory(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{subjects: []model.Subject{{ID: "1292052", Name: "肖申克的救赎", Category: model.CategoryMovie}}}
	s := NewServer(lookup, zap.NewNop(), Options{})

	tests := []struct {
		target string
		call   string
	}{
		{"/v1/search?q=%E8%82%96", "search:肖"},
		{"/v1/search?q=a&category=movie", "movies:a"},
		{"/v1/search?q=a&category=tv", "tv:a"},
		{"/v1/suggest?q=b", "suggest:b"},
		{"/v1/celebrities/search?q=c", "search_celebrities:c"},
	}
	for _, tt := range tests {
		rec := do(t, s, tt.target, nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.target)
		require.Equal(t, tt.call, lookup.lastCall(), tt.target)
	}

	rec := do(t, s, "/v1/search?q=a", nil)
	var got []model.Subject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, lookup.subjects, got)
}

func TestServer_SearchValidation(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeLookup{}, zap.NewNop(), Options{})

	rec := do(t, s, "/v1/search?q=%20", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "q required")

	rec = do(t, s, "/v1/search?q=a&category=book", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SubjectAndCelebrityRoutes(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{
		found:     true,
		subject:   model.Subject{ID: "1292052"},
		celebrity: model.Celebrity{ID: "1054380", Name: "斯坦利·库布里克"},
		photos:    []model.Photo{{ID: "p1", Width: 1200, Height: 1800}},
	}
	s := NewServer(lookup, zap.NewNop(), Options{})

	for target, call := range map[string]string{
		"/v1/subjects/1292052":             "subject:1292052",
		"/v1/subjects/1292052/celebrities": "celebrities:1292052",
		"/v1/subjects/1292052/photos":      "subject_photos:1292052",
		"/v1/celebrities/1054380":          "celebrity:1054380",
		"/v1/celebrities/1054380/photos":   "celebrity_photos:1054380",
	} {
		rec := do(t, s, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		require.Equal(t, call, lookup.lastCall(), target)
	}

	rec := do(t, s, "/v1/celebrities/1054380", nil)
	require.Contains(t, rec.Body.String(), "斯坦利·库布里克")
}

func TestServer_NotFoundAndErrors(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{}
	s := NewServer(lookup, zap.NewNop(), Options{})
	rec := do(t, s, "/v1/subjects/1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	lookup = &fakeLookup{celebErr: errors.New("get celebrity 9: unexpected status 500")}
	s = NewServer(lookup, zap.NewNop(), Options{})
	rec = do(t, s, "/v1/celebrities/9", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "unexpected status 500")
}

func TestServer_Login(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeLookup{login: model.LoginInfo{Name: "影迷小王", LoggedIn: true}}, zap.NewNop(), Options{})
	rec := do(t, s, "/v1/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"name":"影迷小王","logged_in":true}`, rec.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeLookup{}, zap.NewNop(), Options{IDs: fakeIDGen{id: "generated"}})

	rec := do(t, s, "/healthz", nil)
	require.Equal(t, "generated", rec.Header().Get(RequestIDHeader))

	inbound := "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	rec = do(t, s, "/healthz", http.Header{RequestIDHeader: {inbound}})
	require.Equal(t, inbound, rec.Header().Get(RequestIDHeader))

	rec = do(t, s, "/healthz", http.Header{RequestIDHeader: {"not-a-uuid"}})
	require.Equal(t, "generated", rec.Header().Get(RequestIDHeader))
}

func TestServer_RequestTimeout(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeLookup{block: true}, zap.NewNop(), Options{RequestTimeout: 20 * time.Millisecond})
	rec := do(t, s, "/v1/search?q=slow", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "timed out"))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	require.Equal(t, http.StatusRequestTimeout, statusFor(context.Canceled))
	require.Equal(t, http.StatusBadGateway, statusFor(errors.New("boom")))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeLookup{}, zap.NewNop(), Options{})
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
