package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestParseCelebrityName(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		raw  string
		want string
	}{
		{"成龙 Jackie Chan", "成龙"},
		{"李安 Ang Lee", "李安"},
		{"Tom Hanks Tom Hanks", "Tom Hanks"},
		{"Tom Hanks tom hanks", "Tom Hanks"},
		{"Stephen", "Stephen"},
		{"  周星驰  ", "周星驰"},
		{"Morgan Freeman", "Morgan Freeman"},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ParseCelebrityName(tc.raw))
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		raw      string
		role     string
		roleType string
	}{
		{"演员 Actor (饰 安迪·杜佛兰 Andy Dufresne)", "安迪·杜佛兰 Andy Dufresne", "演员"},
		{"配音 Voice (配 孙悟空)", "孙悟空", "配音"},
		{"演员 Actor (Cameo)", "Cameo", "演员"},
		{"导演 Director", "导演", "导演"},
		{"导演", "导演", "导演"},
		{"", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			role, roleType := ParseRole(tc.raw)
			require.Equal(t, tc.role, role)
			require.Equal(t, tc.roleType, roleType)
		})
	}
}

func TestParseLifeDates(t *testing.T) {
	t.Parallel()

	birth, death, ok := ParseLifeDates("1928-07-26 至 1999-03-07")
	require.True(t, ok)
	require.Equal(t, "1928-07-26", birth)
	require.Equal(t, "1999-03-07", death)

	_, _, ok = ParseLifeDates("1928-07-26")
	require.False(t, ok)
}

func TestParseDimensions(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		raw    string
		width  int
		height int
	}{
		{"1200x1800", 1200, 1800},
		{" 640x480 ", 640, 480},
		{"bad", 0, 0},
		{"axb", 0, 0},
		{"1x2x3", 0, 0},
		{"", 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			w, h := ParseDimensions(tc.raw)
			require.Equal(t, tc.width, w)
			require.Equal(t, tc.height, h)
		})
	}
}

func TestFormatOverview(t *testing.T) {
	t.Parallel()

	raw := "\n        　　第一段。\n        \n        　　第二段。©豆瓣\n    "
	require.Equal(t, "第一段。\n\n第二段。", FormatOverview(raw))
	require.Equal(t, "a b", FormatOverview("  a b  "))
	require.Empty(t, FormatOverview(""))
}

func TestResolveTitle(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		html string
		want string
	}{
		{
			"keywords meta wins",
			`<html><head><title>肖申克的救赎 (豆瓣)</title><meta name="keywords" content="肖申克的救赎,The Shawshank Redemption,影评"></head></html>`,
			"肖申克的救赎",
		},
		{
			"title fallback strips site suffix",
			`<html><head><title>  漫长的季节 (豆瓣)  </title></head></html>`,
			"漫长的季节",
		},
		{
			"empty keywords fall back",
			`<html><head><title>活着 (豆瓣)</title><meta name="keywords" content=""></head></html>`,
			"活着",
		},
		{"nothing", `<html></html>`, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.html))
			require.NoError(t, err)
			require.Equal(t, tc.want, ResolveTitle(doc))
		})
	}
	require.Empty(t, ResolveTitle(nil))
}

func TestInferCategory(t *testing.T) {
	t.Parallel()

	tv, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="content"><div class="episode_list"></div></div>`))
	require.NoError(t, err)
	require.Equal(t, "tv", string(InferCategory(tv.Selection)))

	movie, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="content"></div>`))
	require.NoError(t, err)
	require.Equal(t, "movie", string(InferCategory(movie.Selection)))
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()
	require.Equal(t, "a\nb &\n", htmlToText(`<p>a</p><p><b>b</b> &amp;</p>`))
}
