package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPModel calls a model served over HTTP. The service answers
// POST {host}/predict with one label per submitted feature vector.
type HTTPModel struct {
	httpClient       *http.Client
	host             string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	features         []string
}

// NewHTTPModel creates a client targeting host (e.g., http://127.0.0.1:8500).
func NewHTTPModel(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *HTTPModel {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 2
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &HTTPModel{
		httpClient:       &http.Client{Timeout: httpTimeout},
		host:             strings.TrimRight(host, "/"),
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// WithFeatures sets the column names sent alongside each request.
func (m *HTTPModel) WithFeatures(cols []string) *HTTPModel {
	m.features = append([]string(nil), cols...)
	return m
}

type predictRequest struct {
	Columns  []string     `json:"columns,omitempty"`
	Features [][]*float64 `json:"features"`
}

type predictResponse struct {
	Labels []string `json:"labels"`
}

// Predict posts the feature matrix and returns the labels. Transient network
// failures, 429 and 5xx answers are retried with jittered exponential backoff.
func (m *HTTPModel) Predict(ctx context.Context, features [][]float64) ([]string, error) {
	payload, err := json.Marshal(predictRequest{Columns: m.features, Features: nullable(features)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := m.host + "/predict"
	backoff := m.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= m.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		labels, retry, err := m.do(ctx, endpoint, payload)
		if err == nil {
			return labels, nil
		}
		lastErr = err
		if !retry || attempt == m.retryMaxAttempts {
			break
		}
		sleep := withJitter(backoff)
		if sleep > m.retryMaxDelay {
			sleep = m.retryMaxDelay
		}
		zap.L().Debug("retrying model request",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", sleep),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (m *HTTPModel) do(ctx context.Context, endpoint string, payload []byte) ([]string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, isRetryableNetErr(err), &UnreachableError{Host: m.host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw}
		if msg, ok := raw["error"].(string); ok {
			apiErr.Message = msg
		}
		if msg, ok := raw["message"].(string); ok && apiErr.Message == "" {
			apiErr.Message = msg
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, classifyAPIError(apiErr)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return out.Labels, false, nil
}

// nullable encodes NaN as JSON null, which encoding/json cannot emit for float64.
func nullable(rows [][]float64) [][]*float64 {
	out := make([][]*float64, len(rows))
	for i, r := range rows {
		vec := make([]*float64, len(r))
		for j := range r {
			if !math.IsNaN(r[j]) {
				x := r[j]
				vec[j] = &x
			}
		}
		out[i] = vec
	}
	return out
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 200 * time.Millisecond
	}
	// jitter factor in [0.8, 1.2)
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
