package server

import (
	"time"
)

type AccessLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Route      string        `json:"route,omitempty"`
	StatusCode int           `json:"status_code"`
	UserKey    string        `json:"user_key,omitempty"`
	BuyerID    string        `json:"buyer_id,omitempty"`
	Tab        string        `json:"tab,omitempty"`
	Cache      string        `json:"cache,omitempty"`
	Bytes      int           `json:"bytes"`
	Duration   time.Duration `json:"duration"`
}
