package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kpiwatch/collector"
	"kpiwatch/config"
	"kpiwatch/logger"
	"kpiwatch/storage"
)

type app struct {
	cfg *config.Config
	log *logger.Logger
	loc *time.Location
}

func (a *app) newRun() *collector.Run {
	log := a.log.Logger
	q := a.cfg.Qiita

	qiita := collector.NewQiitaClient(q.BaseURL, a.cfg, a.cfg.HTTP.Timeout, log)
	qiita.Concurrency = q.StockerConcurrency
	if q.PerPage > 0 {
		qiita.PerPage = q.PerPage
	}

	resolver := collector.NewRedirectResolver(a.cfg.HTTP.Timeout, a.cfg.HTTP.MaxRedirects, log)
	hatena := collector.NewHatenaClient(
		a.cfg.Hatena.BaseURL,
		a.cfg.Hatena.ContentBaseURL,
		q.Username,
		resolver,
		log,
	)

	return &collector.Run{
		Qiita:    qiita,
		Hatena:   hatena,
		Location: a.loc,
		Log:      log,
	}
}

func (a *app) openStore() (*storage.SQLite, error) {
	dsn := a.cfg.Storage.DSN
	if dir := filepath.Dir(dsn); !isURLDSN(dsn) && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create data dir")
		}
	}
	return storage.NewSQLite(dsn, a.loc, a.log.Logger)
}

// isURLDSN reports DSNs that are not a plain local path.
func isURLDSN(dsn string) bool {
	for _, p := range []string{"libsql://", "wss://", "https://", "file:"} {
		if strings.HasPrefix(dsn, p) {
			return true
		}
	}
	return false
}

// openAppenders opens every configured sink. The returned closer releases
// all of them.
//
// Sinks are written remote first and SQLite last, so a failing SFTP or CSV
// write leaves the history table untouched. A run that fails after an
// earlier sink succeeded is not rolled back; re-running it repeats the row
// in that sink.
func (a *app) openAppenders() (storage.Multi, func(), error) {
	var (
		sinks   storage.Multi
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				a.log.Logger.Warn("close sink", zap.Error(err))
			}
		}
	}

	s := a.cfg.Storage
	if s.SFTP.Host != "" {
		remote, err := storage.DialSFTP(storage.SFTPOptions{
			Host:           s.SFTP.Host,
			User:           s.SFTP.User,
			KeyPath:        s.SFTP.KeyPath,
			KnownHostsPath: s.SFTP.KnownHostsPath,
			Path:           s.SFTP.Path,
		}, a.log.Logger)
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, remote)
		closers = append(closers, remote)
	}
	if s.CSVPath != "" {
		sinks = append(sinks, storage.NewCSV(s.CSVPath, a.log.Logger))
	}
	if s.DSN != "" {
		store, err := a.openStore()
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
	}
	if len(sinks) == 0 {
		return nil, closeAll, errors.New("no storage configured: set storage.dsn, storage.csv_path or storage.sftp.host")
	}
	return sinks, closeAll, nil
}

// collectOnce performs one full run: collect, then append everywhere.
func (a *app) collectOnce(ctx context.Context) (collector.Record, error) {
	if err := a.cfg.ValidateCollect(); err != nil {
		return collector.Record{}, err
	}

	runLog := logger.WithRunID(a.log.Logger, uuid.NewString())
	ctx = logger.WithContext(ctx, runLog)

	sinks, closeSinks, err := a.openAppenders()
	defer closeSinks()
	if err != nil {
		return collector.Record{}, err
	}

	rec, err := a.newRun().CollectAndAppend(ctx, sinks)
	if err != nil {
		return collector.Record{}, err
	}
	runLog.Info("record appended", zap.String("date", rec.Day()), zap.Int("sinks", len(sinks)))
	return rec, nil
}

func renderRecords(w io.Writer, records []collector.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(collector.Columns))
	for i, c := range collector.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, rec := range records {
		t.AppendRow(table.Row(rec.Values()))
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
