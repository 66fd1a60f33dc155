package collector

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kpiwatch/logger"
)

const (
	DefaultHatenaBaseURL  = "http://b.hatena.ne.jp"
	DefaultContentBaseURL = "https://qiita.com"
)

// Resolver turns a URL into the terminal URL of its redirect chain.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// HatenaClient reads the bookmark count of an author page from the
// counter image the Hatena bookmark-count endpoint redirects to.
type HatenaClient struct {
	BaseURL        string // e.g. "http://b.hatena.ne.jp"
	ContentBaseURL string // site hosting the author page, e.g. "https://qiita.com"
	Username       string
	Resolver       Resolver
	Extract        func(terminalURL string) (int, error) // defaults to ExtractCounter
	Log            *zap.Logger
}

// NewHatenaClient returns a client for the author page of username.
func NewHatenaClient(baseURL, contentBaseURL, username string, resolver Resolver, log *zap.Logger) *HatenaClient {
	if baseURL == "" {
		baseURL = DefaultHatenaBaseURL
	}
	if contentBaseURL == "" {
		contentBaseURL = DefaultContentBaseURL
	}
	return &HatenaClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ContentBaseURL: strings.TrimRight(contentBaseURL, "/"),
		Username:       username,
		Resolver:       resolver,
		Extract:        ExtractCounter,
		Log:            log,
	}
}

// CounterURL is the bookmark-count endpoint for the author page.
func (h *HatenaClient) CounterURL() string {
	return h.BaseURL + "/bc/" + h.ContentBaseURL + "/" + h.Username
}

// FetchKPI resolves the counter URL and extracts the bookmark count.
func (h *HatenaClient) FetchKPI(ctx context.Context) (HatenaKPI, error) {
	terminal, err := h.Resolver.Resolve(ctx, h.CounterURL())
	if err != nil {
		return HatenaKPI{}, errors.Wrap(err, "resolve hatena bookmark counter")
	}
	extract := h.Extract
	if extract == nil {
		extract = ExtractCounter
	}
	count, err := extract(terminal)
	if err != nil {
		return HatenaKPI{}, errors.Wrap(err, "extract hatena bookmark counter")
	}
	logger.FromContext(ctx, h.Log).Debug("hatena bookmark count", zap.String("url", terminal), zap.Int("count", count))
	return HatenaKPI{BookmarkCount: count}, nil
}
