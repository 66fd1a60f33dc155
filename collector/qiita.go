package collector

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kpiwatch/logger"
)

const (
	DefaultQiitaBaseURL = "https://qiita.com/api/v2"
	// PerPage is used both for the page count and for every page request.
	PerPage = 100
	// MaxPages caps how many item pages one run will request.
	MaxPages = 10000
)

// CredentialProvider hands out the opaque Qiita secrets.
type CredentialProvider interface {
	QiitaAccessToken() string
	QiitaUsername() string
}

// StockerCounter returns how many users stocked an item. One call per item
// is all the Qiita API offers today.
type StockerCounter interface {
	CountStockers(ctx context.Context, itemID string) (int, error)
}

// QiitaClient aggregates an author's Qiita metrics.
type QiitaClient struct {
	BaseURL  string
	Username string
	HTTP     *resty.Client
	PerPage  int
	// Concurrency bounds the parallel stocker fetches. Values <= 1 keep
	// every request strictly sequential.
	Concurrency int
	// Stockers defaults to the client itself.
	Stockers StockerCounter
	Log      *zap.Logger
}

// NewQiitaClient returns a client authenticated with the provider's token.
func NewQiitaClient(baseURL string, creds CredentialProvider, timeout time.Duration, log *zap.Logger) *QiitaClient {
	if baseURL == "" {
		baseURL = DefaultQiitaBaseURL
	}
	c := newHTTPClient(timeout, log).
		SetAuthToken(creds.QiitaAccessToken()).
		SetHeader("Accept", "application/json")
	return &QiitaClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Username:    creds.QiitaUsername(),
		HTTP:        c,
		PerPage:     PerPage,
		Concurrency: 1,
		Log:         log,
	}
}

// FetchKPI fetches the profile, every authored item and every item's
// stockers. Any failed request aborts the whole call.
func (q *QiitaClient) FetchKPI(ctx context.Context) (QiitaKPI, error) {
	user, err := q.fetchUser(ctx)
	if err != nil {
		return QiitaKPI{}, errors.Wrap(err, "fetch qiita user")
	}
	items, err := q.fetchAllItems(ctx, user.ItemsCount)
	if err != nil {
		return QiitaKPI{}, errors.Wrap(err, "fetch qiita items")
	}
	stocks, err := q.tallyStocks(ctx, items)
	if err != nil {
		return QiitaKPI{}, errors.Wrap(err, "fetch qiita stockers")
	}

	kpi := QiitaKPI{
		PostCount:      user.ItemsCount,
		LikeTotal:      tallyLikes(items),
		SaveTotal:      stocks,
		FollowersCount: user.FollowersCount,
	}
	logger.FromContext(ctx, q.Log).Debug("qiita kpi",
		zap.Int("posts", kpi.PostCount),
		zap.Int("likes", kpi.LikeTotal),
		zap.Int("stocks", kpi.SaveTotal),
		zap.Int("followers", kpi.FollowersCount))
	return kpi, nil
}

func (q *QiitaClient) fetchUser(ctx context.Context) (*qiitaUser, error) {
	u := q.BaseURL + "/users/" + url.PathEscape(q.Username)
	body, err := getBody(q.HTTP.R().SetContext(ctx), u)
	if err != nil {
		return nil, err
	}
	var user qiitaUser
	if err := decodeJSON(body, u, &user); err != nil {
		return nil, err
	}
	if user.ItemsCount < 0 || user.FollowersCount < 0 {
		return nil, &ParseError{Input: u, Err: errors.New("negative count in profile")}
	}
	return &user, nil
}

// fetchAllItems reads pages 1..ceil(itemsCount/perPage). The last page
// may be short.
func (q *QiitaClient) fetchAllItems(ctx context.Context, itemsCount int) ([]qiitaItem, error) {
	perPage := q.perPage()
	if itemsCount > MaxPages*perPage {
		return nil, &ParseError{
			Input: q.BaseURL + "/users/" + url.PathEscape(q.Username),
			Err:   errors.Errorf("items_count %d exceeds %d pages", itemsCount, MaxPages),
		}
	}
	maxPage := (itemsCount + perPage - 1) / perPage

	// itemsCount comes from the server; size the buffer from one page.
	all := make([]qiitaItem, 0, min(itemsCount, perPage))
	for page := 1; page <= maxPage; page++ {
		items, err := q.fetchItems(ctx, page, perPage)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", page)
		}
		all = append(all, items...)
	}
	return all, nil
}

func (q *QiitaClient) fetchItems(ctx context.Context, page, perPage int) ([]qiitaItem, error) {
	u := q.BaseURL + "/authenticated_user/items"
	req := q.HTTP.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("per_page", strconv.Itoa(perPage))
	body, err := getBody(req, u)
	if err != nil {
		return nil, err
	}
	var items []qiitaItem
	if err := decodeJSON(body, u, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, &ParseError{Input: u, Err: errors.New("item page is null")}
	}
	return items, nil
}

// CountStockers implements StockerCounter against GET /items/:id/stockers.
func (q *QiitaClient) CountStockers(ctx context.Context, itemID string) (int, error) {
	u := q.BaseURL + "/items/" + url.PathEscape(itemID) + "/stockers"
	body, err := getBody(q.HTTP.R().SetContext(ctx), u)
	if err != nil {
		return 0, err
	}
	var stockers []json.RawMessage
	if err := decodeJSON(body, u, &stockers); err != nil {
		return 0, err
	}
	return len(stockers), nil
}

func (q *QiitaClient) tallyStocks(ctx context.Context, items []qiitaItem) (int, error) {
	counter := q.Stockers
	if counter == nil {
		counter = q
	}

	if q.Concurrency <= 1 {
		total := 0
		for _, it := range items {
			n, err := counter.CountStockers(ctx, it.ID)
			if err != nil {
				return 0, errors.Wrapf(err, "item %s", it.ID)
			}
			total += n
		}
		return total, nil
	}

	counts := make([]int, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			n, err := counter.CountStockers(gctx, it.ID)
			if err != nil {
				return errors.Wrapf(err, "item %s", it.ID)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (q *QiitaClient) perPage() int {
	if q.PerPage <= 0 {
		return PerPage
	}
	return q.PerPage
}

func tallyLikes(items []qiitaItem) int {
	total := 0
	for _, it := range items {
		total += it.LikesCount
	}
	return total
}
