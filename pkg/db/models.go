package db

import "time"

// Word is a stored dictionary entry. Pinyin is tone-numbered, one syllable
// per character, and ends with the sentinel.
type Word struct {
	ID      int64
	Text    string
	Pinyin  string
	AddedAt time.Time
}
