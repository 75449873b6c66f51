// Package model holds the records produced by the Douban client.
//
// Records are plain values built fresh on each extraction. Missing fields
// keep their zero value and list fields are never nil once a record leaves
// the extractor.
package model

// Category distinguishes movies from TV series.
type Category string

// Subject categories.
const (
	CategoryMovie Category = "movie"
	CategoryTV    Category = "tv"
)

// CategoryFromLabel maps Douban's Chinese category label to a Category.
// It returns false for anything other than 电影 or 电视剧.
func CategoryFromLabel(label string) (Category, bool) {
	switch label {
	case "电影":
		return CategoryMovie, true
	case "电视剧":
		return CategoryTV, true
	default:
		return "", false
	}
}

// Subject is a movie or TV record.
type Subject struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	OriginalName string      `json:"original_name"`
	Category     Category    `json:"category"`
	Genre        string      `json:"genre"`
	Rating       float64     `json:"rating"`
	Year         int         `json:"year"`
	Intro        string      `json:"intro"`
	Directors    []string    `json:"directors"`
	Writers      []string    `json:"writers"`
	Actors       []string    `json:"actors"`
	Country      string      `json:"country"`
	Language     string      `json:"language"`
	Runtime      string      `json:"runtime"`
	ScreenDate   string      `json:"screen_date"`
	AlsoKnownAs  string      `json:"also_known_as"`
	Site         string      `json:"site"`
	IMDb         string      `json:"imdb"`
	Image        string      `json:"image"`
	Celebrities  []Celebrity `json:"celebrities"`
}

// Celebrity is a cast or crew member. The profile fields are only filled by
// a full celebrity lookup.
type Celebrity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	RoleType string `json:"role_type"`
	Image    string `json:"image"`

	EnglishName   string `json:"english_name,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Constellation string `json:"constellation,omitempty"`
	BirthDate     string `json:"birth_date,omitempty"`
	DeathDate     string `json:"death_date,omitempty"`
	Birthplace    string `json:"birthplace,omitempty"`
	NickName      string `json:"nick_name,omitempty"`
	Family        string `json:"family,omitempty"`
	IMDb          string `json:"imdb,omitempty"`
	Intro         string `json:"intro,omitempty"`
}

// Photo is one gallery image.
type Photo struct {
	ID     string `json:"id"`
	Size   string `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Small  string `json:"small,omitempty"`
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
	Raw    string `json:"raw"`
}

// LoginInfo describes the session the configured cookie belongs to.
type LoginInfo struct {
	Name     string `json:"name"`
	LoggedIn bool   `json:"logged_in"`
}
