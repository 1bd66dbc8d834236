package benchmark

import (
	"context"
	"math"
	"time"
)

// TimestampLayout is ISO-8601 with microseconds
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Record is one benchmark result. Field order is the spreadsheet column
// order; nil pointers are written as null.
type Record struct {
	Provider             string   `json:"provider" firestore:"provider"`
	TokenResponseTime    *float64 `json:"token_response_time" firestore:"token_response_time"`
	UserInfoResponseTime *float64 `json:"user_info_response_time" firestore:"user_info_response_time"`
	Latency              float64  `json:"latency" firestore:"latency"`
	TokenReceived        bool     `json:"token_received" firestore:"token_received"`
	TokenExpiresIn       *int64   `json:"token_expires_in" firestore:"token_expires_in"`
	ScopesGranted        string   `json:"scopes_granted" firestore:"scopes_granted"`
	Timestamp            string   `json:"timestamp" firestore:"timestamp"`
	Error                *string  `json:"error" firestore:"error"`
	StartTime            float64  `json:"start_time" firestore:"start_time"`
}

// Fields lists the record's column names in order
var Fields = []string{
	"provider",
	"token_response_time",
	"user_info_response_time",
	"latency",
	"token_received",
	"token_expires_in",
	"scopes_granted",
	"timestamp",
	"error",
	"start_time",
}

// Values returns the record's cells in Fields order. Absent values are nil.
func (r Record) Values() []any {
	return []any{
		r.Provider,
		deref(r.TokenResponseTime),
		deref(r.UserInfoResponseTime),
		r.Latency,
		r.TokenReceived,
		deref(r.TokenExpiresIn),
		r.ScopesGranted,
		r.Timestamp,
		deref(r.Error),
		r.StartTime,
	}
}

// Value returns the cell for a column name, nil if absent or unknown
func (r Record) Value(field string) any {
	for i, f := range Fields {
		if f == field {
			return r.Values()[i]
		}
	}
	return nil
}

// Sink receives finished records
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}

// round4 rounds seconds to four decimal places
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func seconds(d time.Duration) *float64 {
	return ptr(round4(d.Seconds()))
}

// unixSeconds converts t to fractional Unix seconds
func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return round4(float64(t.UnixMicro()) / 1e6)
}
