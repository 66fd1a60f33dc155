package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kpiwatch/logger"
)

// QiitaSource is the contract of the primary platform client.
type QiitaSource interface {
	FetchKPI(ctx context.Context) (QiitaKPI, error)
}

// HatenaSource is the contract of the secondary platform client.
type HatenaSource interface {
	FetchKPI(ctx context.Context) (HatenaKPI, error)
}

// Run collects one Record from both platforms. Either both sources succeed
// and a Record is returned, or an error is returned and nothing else.
type Run struct {
	Qiita    QiitaSource
	Hatena   HatenaSource
	Location *time.Location   // zone that decides the calendar day
	Now      func() time.Time // injected for tests; nil means time.Now
	Log      *zap.Logger
}

// Collect runs both sources once and assembles the Record.
func (r *Run) Collect(ctx context.Context) (Record, error) {
	log := logger.FromContext(ctx, r.Log)
	now := r.now()

	q, err := r.Qiita.FetchKPI(ctx)
	if err != nil {
		log.Error("qiita collection failed", zap.Error(err))
		return Record{}, err
	}
	h, err := r.Hatena.FetchKPI(ctx)
	if err != nil {
		log.Error("hatena collection failed", zap.Error(err))
		return Record{}, err
	}

	rec := NewRecord(now, q, h)
	log.Info("kpi collected",
		zap.String("date", rec.Day()),
		zap.Int("post_count", rec.PostCount),
		zap.Int("like_total", rec.LikeTotal),
		zap.Int("save_total", rec.SaveTotal),
		zap.Int("followers_count", rec.FollowersCount),
		zap.Int("bookmark_count", rec.BookmarkCount))
	return rec, nil
}

// Appender persists a Record. Implementations live in the storage package.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// CollectAndAppend collects one Record and hands it to dst. The record is
// only appended when collection succeeded.
func (r *Run) CollectAndAppend(ctx context.Context, dst Appender) (Record, error) {
	rec, err := r.Collect(ctx)
	if err != nil {
		return Record{}, err
	}
	if err := dst.Append(ctx, rec); err != nil {
		return Record{}, errors.Wrap(err, "append record")
	}
	return rec, nil
}

func (r *Run) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}
