package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func cookieMap(cookies []*http.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out
}

func TestParseCookies(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "bid=abc", map[string]string{"bid": "abc"}},
		{"spaces and trailing separator", " bid=abc ; ck=xyz ;", map[string]string{"bid": "abc", "ck": "xyz"}},
		{"malformed pairs skipped", "bid=abc;novalue;a=b=c;ck=1", map[string]string{"bid": "abc", "ck": "1"}},
		{"empty name skipped", "=abc;ck=1", map[string]string{"ck": "1"}},
		{"quotes stripped from value", `dbcl2="123:abc"; ll="108288"`, map[string]string{"dbcl2": "123:abc", "ll": "108288"}},
		{"lone quote kept", `ck="x`, map[string]string{"ck": `"x`}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, cookieMap(ParseCookies(tc.raw, nil)))
		})
	}
}

func TestStore_LoadAppliesToSubdomains(t *testing.T) {
	t.Parallel()
	s, err := NewStore("", nil)
	require.NoError(t, err)
	require.Equal(t, DefaultDomain, s.Domain())

	n, err := s.Load("dbcl2=secret; ck=token")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, raw := range []string{"https://movie.douban.com/subject/1/", "https://www.douban.com/search", "http://douban.com/"} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"dbcl2": "secret", "ck": "token"}, cookieMap(s.Cookies(u)), raw)
	}

	other, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	require.Empty(t, s.Cookies(other))
}

func TestStore_ReloadInvalidatesPrevious(t *testing.T) {
	t.Parallel()
	s, err := NewStore("douban.com", nil)
	require.NoError(t, err)
	u, err := url.Parse("https://movie.douban.com/")
	require.NoError(t, err)

	_, err = s.Load("dbcl2=old; bid=1")
	require.NoError(t, err)
	s.SetCookies(u, []*http.Cookie{{Name: "ll", Value: "server"}})
	require.Len(t, s.Cookies(u), 3)

	first := s.Fingerprint()
	require.NotEmpty(t, first)

	_, err = s.Load("dbcl2=new")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"dbcl2": "new"}, cookieMap(s.Cookies(u)))
	require.NotEqual(t, first, s.Fingerprint())

	_, err = s.Load("")
	require.NoError(t, err)
	require.Empty(t, s.Cookies(u))
	require.Empty(t, s.Fingerprint())
}

func TestStore_IPDomain(t *testing.T) {
	t.Parallel()
	s, err := NewStore("127.0.0.1", nil)
	require.NoError(t, err)
	_, err = s.Load("dbcl2=secret")
	require.NoError(t, err)

	u, err := url.Parse("http://127.0.0.1:8080/mine/")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"dbcl2": "secret"}, cookieMap(s.Cookies(u)))
}

func TestStore_ConcurrentReloadAndRead(t *testing.T) {
	t.Parallel()
	s, err := NewStore("douban.com", nil)
	require.NoError(t, err)
	u, err := url.Parse("https://movie.douban.com/")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.Load("a=1; b=2")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := len(s.Cookies(u)); got != 0 && got != 2 {
					t.Errorf("observed partial cookie set of size %d", got)
				}
			}
		}()
	}
	wg.Wait()
}

func TestStore_QuotedCookiesSentVerbatim(t *testing.T) {
	t.Parallel()
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Cookie")
	}))
	t.Cleanup(srv.Close)

	s, err := NewStore("127.0.0.1", nil)
	require.NoError(t, err)
	_, err = s.Load(`dbcl2="123456:abcXYZ"; ll="108288"; ck=x`)
	require.NoError(t, err)

	client := &http.Client{Jar: s}
	resp, err := client.Get(srv.URL + "/mine/")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	header := <-received
	require.Contains(t, header, `dbcl2="123456:abcXYZ"`)
	require.Contains(t, header, `ll="108288"`)
	require.Contains(t, header, "ck=x")
}
