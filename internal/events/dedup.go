package events

import "time"

// IndexStart is emitted before a fetch slot's dedup index is built.
type IndexStart struct {
	Key     string
	Objects int
	Workers int
}

// IndexBuilt is emitted after a dedup index was flushed successfully.
type IndexBuilt struct {
	Key      string
	Objects  int
	Groups   int
	Workers  int
	Duration time.Duration
}

// IndexAborted is emitted when a build stops on cancellation, a mapper
// error or a shape fault. No groups are produced for the slot.
type IndexAborted struct {
	Key      string
	Objects  int
	Err      error
	Duration time.Duration
}
