package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kpiwatch/logger"
)

// DefaultMaxRedirects bounds a redirect chain served by an untrusted host.
const DefaultMaxRedirects = 20

// RedirectResolver follows Location headers by hand until it reaches a
// response without one.
type RedirectResolver struct {
	HTTP         *resty.Client
	MaxRedirects int
	Log          *zap.Logger
}

// NewRedirectResolver returns a resolver whose client never follows
// redirects on its own.
func NewRedirectResolver(timeout time.Duration, maxRedirects int, log *zap.Logger) *RedirectResolver {
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	c := newHTTPClient(timeout, log).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	return &RedirectResolver{HTTP: c, MaxRedirects: maxRedirects, Log: log}
}

// Resolve returns the terminal URL of the chain starting at rawURL.
// A chain of N redirects costs N+1 requests.
func (r *RedirectResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	current := rawURL
	for hops := 0; ; hops++ {
		next, err := r.location(ctx, current)
		if err != nil {
			return "", err
		}
		if next == "" {
			logger.FromContext(ctx, r.Log).Debug("redirect chain resolved",
				zap.String("from", rawURL),
				zap.String("to", current),
				zap.Int("hops", hops))
			return current, nil
		}
		if hops >= r.MaxRedirects {
			return "", &ResolutionError{URL: rawURL, Hops: r.MaxRedirects}
		}
		current = next
	}
}

// location requests u and returns the absolute Location it points to, or
// "" when the response is terminal.
func (r *RedirectResolver) location(ctx context.Context, u string) (string, error) {
	resp, err := r.HTTP.R().SetContext(ctx).Get(u)
	if err != nil {
		return "", &UpstreamError{URL: u, Err: err}
	}
	if resp.IsError() {
		return "", &UpstreamError{
			URL:    u,
			Status: resp.StatusCode(),
			Body:   truncate(resp.String(), maxErrorBody),
		}
	}

	loc := resp.Header().Get("Location")
	if loc == "" {
		return "", nil
	}
	base, err := url.Parse(u)
	if err != nil {
		return "", &ParseError{Input: u, Err: err}
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", &ParseError{Input: loc, Err: errors.Wrap(err, "location header")}
	}
	return base.ResolveReference(ref).String(), nil
}
