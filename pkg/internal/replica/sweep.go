package replica

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/metrics"
)

// CollectReport 一次回收的结果.
type CollectReport struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// MissingReport 一次缺失扫描的结果.
type MissingReport struct {
	Checked   int `json:"checked"`
	Missing   int `json:"missing"`
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
}

// Collect 删除没有记录、记录已回收或已解除关联的字节，单个对象失败时记录日志并继续.
func (c *Coordinator) Collect(ctx context.Context) (CollectReport, error) {
	var report CollectReport

	defer observe("collect", time.Now())

	be := c.chest.Backend()
	if !be.Ready() {
		return report, backend.ErrNotInitialized
	}

	for hash := range be.Enumerate(ctx) {
		report.Scanned++

		id := model.ObjectID(hash)

		rec, err := c.chest.Meta().GetObject(ctx, id)

		switch {
		case errors.Is(err, meta.ErrNotFound):
		case err != nil:
			report.Failed++
			c.log.Warn().Err(err).Str("object_id", id).Msg("read record failed")

			continue
		case rec.WantsBytes():
			continue
		}

		if err := be.Delete(ctx, hash); err != nil {
			report.Failed++
			c.log.Warn().Err(err).Str("object_id", id).Msg("remove unreferenced bytes failed")

			continue
		}

		report.Removed++
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	c.log.Info().Int("scanned", report.Scanned).Int("removed", report.Removed).Int("failed", report.Failed).
		Msg("collect finished")

	return report, nil
}

// CheckForMissing 查找记录存在但本地缺少字节的对象.
// 副本广播缺失请求，客户端逐个从副本取回，副本不可达时中止本次扫描.
func (c *Coordinator) CheckForMissing(ctx context.Context) (MissingReport, error) {
	var report MissingReport

	defer observe("check_missing", time.Now())

	be := c.chest.Backend()
	if !be.Ready() {
		return report, backend.ErrNotInitialized
	}

	records, err := c.chest.Meta().FindObjects(ctx, meta.Filter{Where: map[string]any{
		"status": model.StatusPublished,
		"link":   model.LinkLinked,
	}})
	if err != nil {
		return report, fmt.Errorf("list linked records: %w", err)
	}

	client := c.chest.Role() == configs.RoleClient

	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rec := &records[i]
		report.Checked++

		ok, err := be.Exists(ctx, rec.Hash)
		if err != nil {
			report.Failed++
			c.log.Warn().Err(err).Str("object_id", rec.ID).Msg("check bytes failed")

			continue
		}

		if ok {
			continue
		}

		report.Missing++

		if !client {
			c.chest.RequestMissing(rec.ID)
			report.Requested++

			continue
		}

		if _, err := c.chest.LocationWithFallback(ctx, rec.ID); err != nil {
			if errors.Is(err, remote.ErrServerUnreachable) {
				c.log.Error().Err(err).Msg("replica unreachable, aborting sweep")

				return report, err
			}

			report.Failed++
			c.log.Warn().Err(err).Str("object_id", rec.ID).Msg("fetch missing object failed")

			continue
		}

		report.Fetched++
	}

	c.log.Info().Int("checked", report.Checked).Int("missing", report.Missing).
		Int("requested", report.Requested).Int("fetched", report.Fetched).Msg("check for missing finished")

	return report, nil
}

func observe(sweep string, start time.Time) {
	metrics.SweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
}
