package benchmark

import (
	"fmt"
	"time"
)

// TokenExchangeError reports a failed token hop. No user-info call is
// made and no record is produced after it.
type TokenExchangeError struct {
	Provider   string
	StatusCode int
	Duration   time.Duration
	// Body is a truncated copy of the provider's response
	Body string
	Err  error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s token exchange failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s token exchange failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s token exchange failed: status %d", e.Provider, e.StatusCode)
	}
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
