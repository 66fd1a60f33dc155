package collector

import (
	"strconv"
	"time"
)

// DateFormat is the layout of the date column (yyyy/MM/dd).
const DateFormat = "2006/01/02"

// Columns is the fixed column order of a persisted record.
var Columns = []string{
	"date",
	"post_count",
	"like_total",
	"save_total",
	"followers_count",
	"bookmark_count",
}

// QiitaKPI is the result of one Qiita collection.
type QiitaKPI struct {
	PostCount      int
	LikeTotal      int
	SaveTotal      int
	FollowersCount int
}

// HatenaKPI is the result of one Hatena Bookmark collection.
type HatenaKPI struct {
	BookmarkCount int
}

// Record is the unit appended to the store once per run.
// Field order matches Columns.
type Record struct {
	Date           time.Time // midnight of the run day in the configured zone
	PostCount      int
	LikeTotal      int
	SaveTotal      int
	FollowersCount int
	BookmarkCount  int
}

// NewRecord assembles a Record for the calendar day of now.
func NewRecord(now time.Time, q QiitaKPI, h HatenaKPI) Record {
	y, m, d := now.Date()
	return Record{
		Date:           time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
		PostCount:      q.PostCount,
		LikeTotal:      q.LikeTotal,
		SaveTotal:      q.SaveTotal,
		FollowersCount: q.FollowersCount,
		BookmarkCount:  h.BookmarkCount,
	}
}

// Day returns the date column value.
func (r Record) Day() string {
	return r.Date.Format(DateFormat)
}

// Values returns the record as an ordered tuple.
func (r Record) Values() []any {
	return []any{
		r.Day(),
		r.PostCount,
		r.LikeTotal,
		r.SaveTotal,
		r.FollowersCount,
		r.BookmarkCount,
	}
}

// Strings is Values rendered for text sinks such as CSV.
func (r Record) Strings() []string {
	return []string{
		r.Day(),
		strconv.Itoa(r.PostCount),
		strconv.Itoa(r.LikeTotal),
		strconv.Itoa(r.SaveTotal),
		strconv.Itoa(r.FollowersCount),
		strconv.Itoa(r.BookmarkCount),
	}
}

// qiitaUser is the subset of GET /users/:id we read.
type qiitaUser struct {
	ID             string `json:"id"`
	ItemsCount     int    `json:"items_count"`
	FollowersCount int    `json:"followers_count"`
}

// qiitaItem is the subset of an authenticated user's item we read.
type qiitaItem struct {
	ID         string `json:"id"`
	LikesCount int    `json:"likes_count"`
}
