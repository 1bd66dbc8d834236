package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgellow/oauth-bench/internal/ioutil"
	"github.com/dgellow/oauth-bench/internal/log"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/session"
	"github.com/dgellow/oauth-bench/internal/timing"
)

// Outcome is the result of a completed callback
type Outcome struct {
	Record        Record         `json:"benchmark"`
	TokenResponse map[string]any `json:"token_response"`
}

// Runner performs the token and user-info hops and records their timing
type Runner struct {
	client     *http.Client
	dispatcher *timing.Dispatcher
	sink       Sink
	now        func() time.Time
}

// NewRunner creates a runner. A nil client uses timing.NewHTTPClient
// defaults; a nil sink discards records.
func NewRunner(client *http.Client, sink Sink) *Runner {
	if client == nil {
		client = timing.NewHTTPClient(0, 0)
	}
	return &Runner{
		client:     client,
		dispatcher: timing.NewDispatcher(client),
		sink:       sink,
		now:        time.Now,
	}
}

// Callback exchanges code for a token, fetches user info and records the
// result. The only error it returns is *TokenExchangeError; every other
// failure is folded into the record.
func (r *Runner) Callback(ctx context.Context, p *provider.Provider, s session.Session, code string) (out *Outcome, err error) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.LogErrorWithFields("benchmark", "Recovered panic during benchmark", map[string]any{
				"provider": p.Name(),
				"panic":    fmt.Sprint(rec),
			})
			out, err = r.failed(ctx, p.Name(), s, start, fmt.Errorf("internal error: %v", rec)), nil
		}
	}()

	req, err := p.TokenRequest(ctx, code)
	if err != nil {
		return r.failed(ctx, p.Name(), s, start, err), nil
	}

	tokenResult := r.dispatcher.Do(req)
	token, exchangeErr := checkTokenResponse(p.Name(), tokenResult)
	if exchangeErr != nil {
		log.LogErrorWithFields("benchmark", "Token exchange failed", map[string]any{
			"provider":    p.Name(),
			"status":      exchangeErr.StatusCode,
			"duration_ms": tokenResult.Duration.Milliseconds(),
			"body":        exchangeErr.Body,
			"error":       exchangeErr.Error(),
		})
		return nil, exchangeErr
	}

	rec := Record{
		Provider:          p.Name(),
		TokenResponseTime: seconds(tokenResult.Duration),
		TokenReceived:     true,
		TokenExpiresIn:    expiresIn(token),
		StartTime:         unixSeconds(s.StartTime),
	}

	accessToken, _ := token["access_token"].(string)
	userHeader := r.fetchUserInfo(ctx, p, accessToken, &rec)

	rec.Latency = round4(time.Since(start).Seconds())
	rec.ScopesGranted = strings.Join(p.GrantedScopes(token, userHeader), ",")
	rec.Timestamp = r.now().Format(TimestampLayout)

	r.emit(ctx, rec)
	return &Outcome{Record: rec, TokenResponse: token}, nil
}

// fetchUserInfo performs the user-info hop, filling the record's timing
// and error. It returns the response headers when a response arrived.
func (r *Runner) fetchUserInfo(ctx context.Context, p *provider.Provider, accessToken string, rec *Record) http.Header {
	req, err := p.UserInfoRequest(ctx, accessToken)
	if err != nil {
		rec.Error = ptr(err.Error())
		return nil
	}

	result := r.dispatcher.Do(req)
	rec.UserInfoResponseTime = seconds(result.Duration)

	if result.Err != nil {
		log.LogWarnWithFields("benchmark", "User info request failed", map[string]any{
			"provider": p.Name(),
			"error":    result.Err.Error(),
		})
		rec.Error = ptr(result.Err.Error())
		return nil
	}

	resp := result.Response()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.LogWarnWithFields("benchmark", "User info request rejected", map[string]any{
			"provider": p.Name(),
			"status":   resp.StatusCode,
			"body":     ioutil.Snippet(result.Body),
		})
		rec.Error = ptr(fmt.Sprintf("user info request failed: status %d", resp.StatusCode))
	}
	return resp.Header
}

// failed builds and records a failure-shaped record
func (r *Runner) failed(ctx context.Context, providerName string, s session.Session, start time.Time, cause error) *Outcome {
	rec := Record{
		Provider:      providerName,
		Latency:       round4(time.Since(start).Seconds()),
		TokenReceived: false,
		Timestamp:     r.now().Format(TimestampLayout),
		Error:         ptr(cause.Error()),
		StartTime:     unixSeconds(s.StartTime),
	}
	r.emit(ctx, rec)
	return &Outcome{Record: rec, TokenResponse: map[string]any{}}
}

// emit hands the record to the sink. Sink failures are logged only and
// a disconnected client does not cancel the write.
func (r *Runner) emit(ctx context.Context, rec Record) {
	log.LogInfoWithFields("benchmark", "Benchmark recorded", map[string]any{
		"provider":       rec.Provider,
		"latency":        rec.Latency,
		"token_received": rec.TokenReceived,
	})

	if r.sink == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			log.LogErrorWithFields("benchmark", "Sink panicked", map[string]any{
				"provider": rec.Provider,
				"panic":    fmt.Sprint(p),
			})
		}
	}()
	if err := r.sink.Write(context.WithoutCancel(ctx), rec); err != nil {
		log.LogErrorWithFields("benchmark", "Failed to write benchmark record", map[string]any{
			"provider": rec.Provider,
			"error":    err.Error(),
		})
	}
}

// checkTokenResponse validates the token hop and decodes its body
func checkTokenResponse(providerName string, result timing.Result) (map[string]any, *TokenExchangeError) {
	if result.Err != nil {
		return nil, &TokenExchangeError{Provider: providerName, Duration: result.Duration, Err: result.Err}
	}

	resp := result.Response()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TokenExchangeError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Duration:   result.Duration,
			Body:       ioutil.Snippet(result.Body),
		}
	}

	token, err := ParseTokenResponse(resp.Header.Get("Content-Type"), result.Body)
	if err != nil {
		return nil, &TokenExchangeError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Duration:   result.Duration,
			Body:       ioutil.Snippet(result.Body),
			Err:        err,
		}
	}

	if accessToken, _ := token["access_token"].(string); accessToken == "" {
		// GitHub reports grant errors with a 200 status
		cause := errors.New("no access_token in response")
		if code, ok := token["error"].(string); ok {
			cause = fmt.Errorf("provider error %s: %v", code, token["error_description"])
		}
		return nil, &TokenExchangeError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Duration:   result.Duration,
			Body:       ioutil.Snippet(result.Body),
			Err:        cause,
		}
	}

	return token, nil
}

// ParseTokenResponse decodes a token endpoint body. JSON is expected;
// form-encoded bodies are accepted for providers that default to them.
func ParseTokenResponse(contentType string, body []byte) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "text/plain" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("decoding form token response: %w", err)
		}
		token := make(map[string]any, len(values))
		for k := range values {
			token[k] = values.Get(k)
		}
		return token, nil
	}

	var token map[string]any
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if token == nil {
		return nil, errors.New("empty token response")
	}
	return token, nil
}

func expiresIn(token map[string]any) *int64 {
	switch v := token["expires_in"].(type) {
	case float64:
		return ptr(int64(v))
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return ptr(n)
		}
	}
	return nil
}
