package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"kpiwatch/collector"
	"kpiwatch/config"
	"kpiwatch/logger"
	"kpiwatch/timezone"
)

// platformServer fakes both platforms for user alice. profileHits, when
// non-nil, counts profile requests.
func platformServer(t *testing.T, profileHits *atomic.Int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case p == "/api/v2/users/alice":
			if profileHits != nil {
				profileHits.Add(1)
			}
			_, _ = io.WriteString(w, `{"id":"alice","items_count":2,"followers_count":9}`)
		case p == "/api/v2/authenticated_user/items":
			if r.Header.Get("Authorization") != "Bearer token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `[{"id":"a1","likes_count":4},{"id":"b2","likes_count":6}]`)
		case p == "/api/v2/items/a1/stockers":
			_, _ = io.WriteString(w, `[{"id":"x"},{"id":"y"}]`)
		case p == "/api/v2/items/b2/stockers":
			_, _ = io.WriteString(w, `[{"id":"z"}]`)
		case strings.HasPrefix(p, "/bc/"):
			w.Header().Set("Location", srv.URL+"/images/counter/default/00/00/0000007.gif")
			w.WriteHeader(http.StatusFound)
		case strings.HasPrefix(p, "/images/counter/"):
			_, _ = io.WriteString(w, "GIF89a")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testApp(t *testing.T, srvURL string) *app {
	t.Helper()
	log, err := logger.NewWithWriter("error", io.Discard)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := &config.Config{
		Timezone: timezone.Default,
		HTTP:     config.HTTPConfig{Timeout: 5 * time.Second, MaxRedirects: 5},
		Qiita: config.QiitaConfig{
			BaseURL:            srvURL + "/api/v2",
			AccessToken:        "token",
			Username:           "alice",
			StockerConcurrency: 1,
		},
		Hatena: config.HatenaConfig{BaseURL: srvURL, ContentBaseURL: "https://qiita.com"},
		Storage: config.StorageConfig{
			DSN:     filepath.Join(dir, "data", "kpi.db"),
			CSVPath: filepath.Join(dir, "kpi.csv"),
		},
	}
	return &app{cfg: cfg, log: log, loc: timezone.Location}
}

func TestCollectOnceAppendsEverywhere(t *testing.T) {
	srv := platformServer(t, nil)
	a := testApp(t, srv.URL)
	ctx := context.Background()

	rec, err := a.collectOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{rec.Day(), 2, 10, 3, 9, 7}, rec.Values())

	csv, err := os.ReadFile(a.cfg.Storage.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Join(collector.Columns, ","), lines[0])
	require.Equal(t, strings.Join(rec.Strings(), ","), lines[1])

	store, err := a.openStore()
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, rec.Values(), stored[0].Values())
}

func TestCollectOnceFailureAppendsNothing(t *testing.T) {
	srv := platformServer(t, nil)
	a := testApp(t, srv.URL)
	a.cfg.Qiita.AccessToken = "expired"

	_, err := a.collectOnce(context.Background())
	var upstream *collector.UpstreamError
	require.ErrorAs(t, err, &upstream)
	requireNothingStored(t, a)
}

// requireNothingStored asserts that no sink received a row.
func requireNothingStored(t *testing.T, a *app) {
	t.Helper()
	_, statErr := os.Stat(a.cfg.Storage.CSVPath)
	require.True(t, os.IsNotExist(statErr))

	store, err := a.openStore()
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestCollectJobFailureKeepsNextTick(t *testing.T) {
	var hits atomic.Int32
	srv := platformServer(t, &hits)
	a := testApp(t, srv.URL)
	a.cfg.Qiita.AccessToken = "expired"

	job := &collectJob{ctx: context.Background(), app: a}
	require.NotPanics(t, job.Run)
	require.NotPanics(t, job.Run)

	require.EqualValues(t, 2, hits.Load())
	requireNothingStored(t, a)

	// the credential is fixed between ticks
	a.cfg.Qiita.AccessToken = "token"
	job.Run()
	require.EqualValues(t, 3, hits.Load())

	store, err := a.openStore()
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestJobChainRecoversPanics(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:0")
	job := cron.NewChain(jobChain(a)...).Then(cron.FuncJob(func() { panic("boom") }))
	require.NotPanics(t, job.Run)
}

func TestScheduleStopsOnCancel(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:0")
	a.cfg.Schedule = "@daily"
	prev := current
	current = a
	t.Cleanup(func() { current = prev })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scheduleCmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- scheduleCmd.RunE(scheduleCmd, nil) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:0")
	a.cfg.Schedule = "every day"
	prev := current
	current = a
	t.Cleanup(func() { current = prev })

	scheduleCmd.SetContext(context.Background())
	require.Error(t, scheduleCmd.RunE(scheduleCmd, nil))
}

func TestFailingCSVLeavesHistoryUntouched(t *testing.T) {
	srv := platformServer(t, nil)
	a := testApp(t, srv.URL)
	// a directory cannot be opened for append
	require.NoError(t, os.MkdirAll(a.cfg.Storage.CSVPath, 0o755))

	_, err := a.collectOnce(context.Background())
	require.Error(t, err)

	store, err := a.openStore()
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestCollectOnceRequiresCredentials(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:0")
	a.cfg.Qiita.Username = ""

	_, err := a.collectOnce(context.Background())
	require.ErrorContains(t, err, "qiita.username")
}

func TestOpenAppendersNeedsASink(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:0")
	a.cfg.Storage = config.StorageConfig{}

	_, closeAll, err := a.openAppenders()
	closeAll()
	require.ErrorContains(t, err, "no storage configured")
}

func TestRenderRecords(t *testing.T) {
	rec := collector.Record{
		Date:           time.Date(2024, time.October, 15, 0, 0, 0, 0, timezone.Location),
		PostCount:      150,
		LikeTotal:      900,
		SaveTotal:      300,
		FollowersCount: 42,
		BookmarkCount:  653,
	}
	var buf bytes.Buffer
	renderRecords(&buf, []collector.Record{rec})

	out := buf.String()
	require.Contains(t, out, "2024/10/15")
	require.Contains(t, out, "653")
	require.Contains(t, strings.ToUpper(out), "FOLLOWERS")
}

func TestIsURLDSN(t *testing.T) {
	require.True(t, isURLDSN("libsql://db.turso.io"))
	require.True(t, isURLDSN("file:kpi.db"))
	require.False(t, isURLDSN("./data/kpi.db"))
}

func TestNewRunUsesConfiguredPaging(t *testing.T) {
	a := testApp(t, "http://127.0.0.1:0")
	a.cfg.Qiita.PerPage = 20
	a.cfg.Qiita.StockerConcurrency = 4

	qiita, ok := a.newRun().Qiita.(*collector.QiitaClient)
	require.True(t, ok)
	require.Equal(t, 20, qiita.PerPage)
	require.Equal(t, 4, qiita.Concurrency)

	a.cfg.Qiita.PerPage = 0
	qiita = a.newRun().Qiita.(*collector.QiitaClient)
	require.Equal(t, collector.PerPage, qiita.PerPage)
}
