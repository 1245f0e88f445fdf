package replica

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
)

// OrphanReport 一次孤儿扫描的结果.
type OrphanReport struct {
	Referenced int      `json:"referenced"`
	Candidates int      `json:"candidates"`
	Retained   int      `json:"retained"`
	Trashed    []string `json:"trashed"`
	Skipped    bool     `json:"skipped,omitempty"`
}

var objectRefPattern = regexp.MustCompile(model.ObjectKind + `@[0-9a-f]{64}`)

// ScanOrphans 回收没有被任何来源引用的已发布对象.
// 引用来自配置的 (table, column) 文本列与已发布的别名.
// 候选对象按创建时间从新到旧保留，累计大小超过 retention_bytes 的部分被回收.
// 未配置引用来源时跳过扫描.
func (c *Coordinator) ScanOrphans(ctx context.Context) (OrphanReport, error) {
	var report OrphanReport

	defer observe("orphan_scan", time.Now())

	if len(c.cfg.Orphans.Sources) == 0 {
		report.Skipped = true

		return report, nil
	}

	store := c.chest.Meta()
	referenced := make(map[string]struct{})

	for _, src := range c.cfg.Orphans.Sources {
		values, err := store.References(ctx, src.Table, src.Column, model.ObjectKind+"@")
		if err != nil {
			return report, err
		}

		for _, v := range values {
			for _, id := range objectRefPattern.FindAllString(v, -1) {
				referenced[id] = struct{}{}
			}
		}
	}

	aliases, err := store.FindAliases(ctx, meta.Filter{Where: map[string]any{"status": model.StatusPublished}})
	if err != nil {
		return report, fmt.Errorf("list aliases: %w", err)
	}

	for _, a := range aliases {
		referenced[a.ObjectID] = struct{}{}
	}

	report.Referenced = len(referenced)

	records, err := store.FindObjects(ctx, meta.Filter{Where: map[string]any{"status": model.StatusPublished}})
	if err != nil {
		return report, fmt.Errorf("list records: %w", err)
	}

	var candidates []model.ObjectRecord

	for _, rec := range records {
		if _, ok := referenced[rec.ID]; !ok {
			candidates = append(candidates, rec)
		}
	}

	report.Candidates = len(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	var (
		kept int64
		full bool
	)

	for _, rec := range candidates {
		if !full && kept+rec.Size <= c.cfg.Orphans.RetentionBytes {
			kept += rec.Size
			report.Retained++

			continue
		}

		full = true

		if err := c.chest.Trash(ctx, rec.ID); err != nil {
			c.log.Warn().Err(err).Str("object_id", rec.ID).Msg("trash orphan failed")

			continue
		}

		report.Trashed = append(report.Trashed, rec.ID)
	}

	c.log.Info().Int("referenced", report.Referenced).Int("candidates", report.Candidates).
		Int("trashed", len(report.Trashed)).Msg("orphan scan finished")

	return report, nil
}
