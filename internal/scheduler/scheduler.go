package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"StockSentinel/internal/model"
	"StockSentinel/internal/pipeline"
)

// Jobs is the work the dispatcher can route to.
type Jobs interface {
	MonitoringTick(ctx context.Context, market model.Market) error
	DailySummary(ctx context.Context, market model.Market) error
	FundRefresh(ctx context.Context) error
	WeeklySummary(ctx context.Context) error
}

// Scheduler fires a single five-minute cron entry and routes it by UTC
// wall-clock: fixed daily jobs at their slot, otherwise a monitoring tick
// for whichever market is open.
type Scheduler struct {
	Cron *cron.Cron
	Jobs Jobs
	Ctx  context.Context

	now func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(ctx context.Context, jobs Jobs) *Scheduler {
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Jobs: jobs,
		Ctx:  ctx,
		now:  time.Now,
	}
}

// Register installs the dispatcher entry.
func (s *Scheduler) Register() error {
	if _, err := s.Cron.AddFunc("0 */5 * * * *", s.dispatch); err != nil {
		return fmt.Errorf("register dispatcher: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes one dispatch immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.dispatch()
}

// dispatch routes the current five-minute slot. The fixed jobs claim the
// :00 firing of their hour; every other slot is a monitoring tick when a
// market is in session.
func (s *Scheduler) dispatch() {
	now := s.now().UTC()
	topOfHour := now.Minute() == 0

	switch {
	case topOfHour && now.Hour() == 7:
		s.run("jp daily summary", func() error { return s.Jobs.DailySummary(s.Ctx, model.MarketJP) })
	case topOfHour && now.Hour() == 22:
		s.run("us daily summary", func() error { return s.Jobs.DailySummary(s.Ctx, model.MarketUS) })
	case topOfHour && now.Hour() == 13:
		s.run("fund refresh", func() error { return s.Jobs.FundRefresh(s.Ctx) })
	case topOfHour && now.Weekday() == time.Saturday && now.Hour() == 10:
		s.run("weekly summary", func() error { return s.Jobs.WeeklySummary(s.Ctx) })
	default:
		ticked := false
		if pipeline.MarketOpen(model.MarketJP, now) {
			ticked = true
			s.run("jp tick", func() error { return s.Jobs.MonitoringTick(s.Ctx, model.MarketJP) })
		}
		if pipeline.MarketOpen(model.MarketUS, now) {
			ticked = true
			s.run("us tick", func() error { return s.Jobs.MonitoringTick(s.Ctx, model.MarketUS) })
		}
		if !ticked {
			log.Println("[INFO] all markets closed, skipping tick")
		}
	}
}

func (s *Scheduler) run(name string, job func() error) {
	log.Printf("[INFO] running %s", name)
	if err := job(); err != nil {
		log.Printf("[ERROR] %s: %v", name, err)
	}
}
