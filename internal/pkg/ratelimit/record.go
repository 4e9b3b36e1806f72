package ratelimit

import (
	"encoding/json"
	"time"
)

// Record is the persisted state for one (action, identity) pair.
type Record struct {
	Attempts     int    `json:"attempts"`
	WindowStart  int64  `json:"window_start"`
	BlockedUntil *int64 `json:"blocked_until"`
}

func freshRecord(now time.Time) Record {
	return Record{Attempts: 1, WindowStart: now.Unix()}
}

// Blocked reports whether a lockout is in force at now.
func (r Record) Blocked(now time.Time) bool {
	return r.BlockedUntil != nil && now.Unix() < *r.BlockedUntil
}

// WindowExpired is strict: a record exactly window old still counts.
func (r Record) WindowExpired(now time.Time, window time.Duration) bool {
	return now.Unix()-r.WindowStart > int64(window/time.Second)
}

func (r Record) blockedUntilTime() time.Time {
	if r.BlockedUntil == nil {
		return time.Time{}
	}
	return time.Unix(*r.BlockedUntil, 0)
}

// Marshal encodes the record in its stored form.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord decodes a stored record. A payload without a window start
// is rejected so corrupt files are not mistaken for live state.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	if r.WindowStart <= 0 || r.Attempts < 0 {
		return Record{}, errCorruptRecord
	}
	return r, nil
}
