package search

import "errors"

var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrAllSourcesFailed = errors.New("all sources failed")
	ErrStaleQuery       = errors.New("query superseded by a newer one")
	ErrPageOutOfRange   = errors.New("page out of range")
)
