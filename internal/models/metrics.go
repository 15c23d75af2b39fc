package models

import "time"

// VideoSnapshot is one immutable row of collected video counters.
// Online is nil when the best-effort live-viewer fetch failed.
type VideoSnapshot struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	CollectedAt time.Time `json:"collected_at"`

	View     int64  `json:"view"`
	Online   *int64 `json:"online,omitempty"`
	Like     int64  `json:"like"`
	Coin     int64  `json:"coin"`
	Favorite int64  `json:"favorite"`
	Share    int64  `json:"share"`
	Danmaku  int64  `json:"danmaku"`
	Reply    int64  `json:"reply"`
}

// AuthorSnapshot is one immutable row of collected creator counters.
type AuthorSnapshot struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	CollectedAt time.Time `json:"collected_at"`

	Follower int64 `json:"follower"`
}
