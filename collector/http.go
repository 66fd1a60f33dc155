package collector

import (
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"kpiwatch/logger"
)

const (
	userAgent      = "kpiwatch/0.1"
	DefaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// newHTTPClient returns the resty client shared by the platform clients.
func newHTTPClient(timeout time.Duration, log *zap.Logger) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetLogger(log.Sugar())
	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.FromContext(req.Context(), log).Debug("start request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	return c
}

// getBody issues req as a GET and returns the body of a 2xx response.
func getBody(req *resty.Request, url string) ([]byte, error) {
	resp, err := req.Get(url)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &UpstreamError{
			URL:    url,
			Status: resp.StatusCode(),
			Body:   truncate(resp.String(), maxErrorBody),
		}
	}
	return resp.Body(), nil
}

func decodeJSON(body []byte, url string, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &ParseError{Input: url, Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
