// Package scheduler 基于 gocron/v2 按名称管理周期任务.
// 同名任务只会注册一次，同一任务不会并发执行.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/yeisme/chest/pkg/log"
)

var (
	// ErrJobNotFound 指定名称的任务不存在.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists 同名任务已注册.
	ErrJobExists = errors.New("job already exists")
)

// JobStatus 任务状态.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusError     JobStatus = "error"
)

// JobInfo 任务快照，供接口与命令行展示.
type JobInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CronExpr     string        `json:"cron_expr"`
	Status       JobStatus     `json:"status"`
	Runs         int64         `json:"runs"`
	NextRun      time.Time     `json:"next_run"`
	LastRun      time.Time     `json:"last_run"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type entry struct {
	job  gocron.Job
	info JobInfo
}

// Scheduler 周期任务调度器.
type Scheduler struct {
	cron   gocron.Scheduler
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewScheduler 创建调度器，调用 Start 之后任务才会按计划执行.
func NewScheduler() (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cron:    cron,
		logger:  log.Component("scheduler"),
		entries: make(map[string]*entry),
	}, nil
}

// AddCron 按 cron 表达式注册任务，同名任务已存在时返回 ErrJobExists.
// 上一次执行未结束时本次触发顺延.
func (s *Scheduler) AddCron(ctx context.Context, name, cronExpr string, run func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	job, err := s.cron.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func(ctx context.Context) { s.execute(ctx, name, run) }, ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}

	s.entries[name] = &entry{
		job: job,
		info: JobInfo{
			ID:        job.ID().String(),
			Name:      name,
			CronExpr:  cronExpr,
			Status:    StatusScheduled,
			CreatedAt: time.Now(),
		},
	}

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("job added")

	return nil
}

// execute 记录一次执行的耗时与结果，panic 被转成错误状态.
func (s *Scheduler) execute(ctx context.Context, name string, run func(ctx context.Context)) {
	start := time.Now()
	s.update(name, func(info *JobInfo) {
		info.Status = StatusRunning
		info.LastRun = start
	})

	defer func() {
		elapsed := time.Since(start)
		r := recover()

		s.update(name, func(info *JobInfo) {
			info.Runs++
			info.LastDuration = elapsed

			if r != nil {
				info.Status = StatusError
				info.Error = fmt.Sprint(r)

				return
			}

			info.Status = StatusScheduled
			info.Error = ""
			info.LastSuccess = time.Now()
		})

		if r != nil {
			s.logger.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
		}
	}()

	run(ctx)
}

func (s *Scheduler) update(name string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok {
		fn(&e.info)
	}
}

// HasJob 任务是否已注册.
func (s *Scheduler) HasJob(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[name]

	return ok
}

// RemoveJobByName 撤销任务，不存在时什么也不做.
func (s *Scheduler) RemoveJobByName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return nil
	}

	if err := s.cron.RemoveJob(e.job.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return err
	}

	delete(s.entries, name)
	s.logger.Info().Str("job", name).Msg("job removed")

	return nil
}

// RunNow 立即触发一次，不影响原有计划.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return e.job.RunNow()
}

// GetJobInfoByName 返回单个任务的快照.
func (s *Scheduler) GetJobInfoByName(name string) (*JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	info := e.snapshot()

	return &info, nil
}

// GetJobInfos 返回全部任务的快照，按名称排序.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.snapshot())
	}

	slices.SortFunc(out, func(a, b JobInfo) int { return cmp.Compare(a.Name, b.Name) })

	return out
}

// snapshot 下次运行时间直接取自 gocron.
func (e *entry) snapshot() JobInfo {
	info := e.info
	if next, err := e.job.NextRun(); err == nil {
		info.NextRun = next
	}

	return info
}

// Start 开始按计划执行.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.GetJobInfos())).Msg("scheduler started")
	s.cron.Start()
}

// Stop 等待执行中的任务结束后停止.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}
