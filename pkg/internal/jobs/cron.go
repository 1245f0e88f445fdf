// Package jobs 负责按角色注册与撤销对象存储的定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/chest/pkg/log"
	"github.com/yeisme/chest/pkg/scheduler"
)

// ErrNoScheduler 未提供调度器.
var ErrNoScheduler = errors.New("scheduler is nil")

// Spec 描述一个定时任务，Cron 为空表示禁用.
type Spec struct {
	Name string
	Cron string
	Run  func(ctx context.Context)
}

// Ensure 注册尚未存在的任务，已注册的任务保持不变.
func Ensure(ctx context.Context, sched *scheduler.Scheduler, specs ...Spec) error {
	if sched == nil {
		return ErrNoScheduler
	}

	var errs []error

	for _, spec := range specs {
		if spec.Cron == "" || sched.HasJob(spec.Name) {
			continue
		}

		run := spec.Run
		name := spec.Name

		err := sched.AddCron(ctx, name, spec.Cron, func(ctx context.Context) {
			l := log.Logger().With().Str("job", name).Logger()
			l.Debug().Msg("job started")
			run(ctx)
			l.Debug().Msg("job finished")
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Remove 撤销任务，不存在的任务被忽略.
func Remove(sched *scheduler.Scheduler, names ...string) error {
	if sched == nil {
		return nil
	}

	var errs []error

	for _, name := range names {
		if err := sched.RemoveJobByName(name); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
