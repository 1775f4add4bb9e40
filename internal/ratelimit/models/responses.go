package models

import "time"

// RateLimitExceededResponse is the API response when a window is exhausted.
type RateLimitExceededResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	Limit      int       `json:"limit"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after"` // seconds
}
