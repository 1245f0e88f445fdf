// Package replica 协调副本与客户端之间的对象复制：角色切换、字节回收、
// 缺失对象扫描、缺失广播的监听以及孤儿对象清理.
package replica

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/jobs"
	"github.com/yeisme/chest/pkg/internal/service"
	nlog "github.com/yeisme/chest/pkg/log"
	"github.com/yeisme/chest/pkg/scheduler"
)

// Coordinator 复制协调器.
type Coordinator struct {
	chest *service.Chest
	sub   message.Subscriber
	sched *scheduler.Scheduler
	cfg   configs.ChestConfig

	mu       sync.Mutex
	base     context.Context
	listener *listener

	log zerolog.Logger
}

// New 创建协调器，sub 与 sched 可以为空，此时不监听广播、不注册定时任务.
func New(chest *service.Chest, sub message.Subscriber, sched *scheduler.Scheduler) *Coordinator {
	return &Coordinator{
		chest: chest,
		sub:   sub,
		sched: sched,
		cfg:   chest.Config(),
		base:  context.Background(),
		log:   nlog.Component("replica"),
	}
}

// Role 当前角色.
func (c *Coordinator) Role() configs.Role {
	return c.chest.Role()
}

// Start 应用配置中的角色并执行一次回收.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.base = context.WithoutCancel(ctx)
	c.mu.Unlock()

	role := c.cfg.Role
	if role == "" {
		role = configs.RoleReplica
	}

	if err := c.SetRole(ctx, role); err != nil {
		return err
	}

	if _, err := c.Collect(ctx); err != nil {
		c.log.Error().Err(err).Msg("startup collect failed")
	}

	return nil
}

// Stop 停止监听并撤销全部定时任务.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopListener()

	return jobs.Remove(c.sched, append(append([]string{}, jobs.ReplicaJobs...), jobs.ClientJobs...)...)
}

// SetRole 切换角色，重复调用无副作用.
// 副本：容量不受限，运行回收、缺失扫描与孤儿扫描任务.
// 客户端：恢复配置的容量，撤销副本任务并监听缺失广播.
func (c *Coordinator) SetRole(ctx context.Context, role configs.Role) error {
	switch role {
	case configs.RoleReplica, configs.RoleClient:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.chest.SetRole(role)

	if role == configs.RoleReplica {
		c.chest.SetCapacity(0)
		c.stopListener()

		if err := jobs.Remove(c.sched, jobs.ClientJobs...); err != nil {
			return err
		}

		if c.sched == nil {
			return nil
		}

		return jobs.Ensure(c.base, c.sched,
			jobs.Spec{Name: jobs.JobCollect, Cron: c.cfg.Schedule.Collect, Run: c.runCollect},
			jobs.Spec{Name: jobs.JobCheckMissing, Cron: c.cfg.Schedule.CheckMissing, Run: c.runCheckMissing},
			jobs.Spec{Name: jobs.JobOrphanScan, Cron: c.cfg.Schedule.OrphanScan, Run: c.runOrphanScan},
		)
	}

	c.chest.SetCapacity(c.cfg.FS.MaxSize)

	if err := jobs.Remove(c.sched, jobs.ReplicaJobs...); err != nil {
		return err
	}

	if err := c.startListener(ctx); err != nil {
		return err
	}

	if c.sched == nil {
		return nil
	}

	return jobs.Ensure(c.base, c.sched,
		jobs.Spec{Name: jobs.JobClientSync, Cron: c.cfg.Schedule.ClientSync, Run: c.runCheckMissing},
	)
}

func (c *Coordinator) runCollect(ctx context.Context) {
	if _, err := c.Collect(ctx); err != nil {
		c.log.Error().Err(err).Msg("collect failed")
	}
}

func (c *Coordinator) runCheckMissing(ctx context.Context) {
	if _, err := c.CheckForMissing(ctx); err != nil {
		c.log.Error().Err(err).Msg("check for missing failed")
	}
}

func (c *Coordinator) runOrphanScan(ctx context.Context) {
	if _, err := c.ScanOrphans(ctx); err != nil {
		c.log.Error().Err(err).Msg("orphan scan failed")
	}
}
