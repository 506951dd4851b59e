// Package events defines the messages exchanged between the generator and
// the lookup service.
package events

import "time"

// IndexEvent announces that a map file was written or rewritten.
type IndexEvent struct {
	Channel     string    `json:"channel"`
	Subdir      string    `json:"subdir"`
	Path        string    `json:"path"`
	Entries     int       `json:"entries"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Key partitions events so that updates of one map file stay ordered.
func (e IndexEvent) Key() string {
	return e.Channel + "." + e.Subdir
}
