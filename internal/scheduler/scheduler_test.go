package scheduler

import (
	"context"
	"testing"
	"time"

	"StockSentinel/internal/model"
)

type recordingJobs struct {
	ticks     []model.Market
	summaries []model.Market
	funds     int
	weeklies  int
}

func (r *recordingJobs) MonitoringTick(_ context.Context, m model.Market) error {
	r.ticks = append(r.ticks, m)
	return nil
}
func (r *recordingJobs) DailySummary(_ context.Context, m model.Market) error {
	r.summaries = append(r.summaries, m)
	return nil
}
func (r *recordingJobs) FundRefresh(context.Context) error {
	r.funds++
	return nil
}
func (r *recordingJobs) WeeklySummary(context.Context) error {
	r.weeklies++
	return nil
}

func dispatchAt(t *testing.T, at time.Time) *recordingJobs {
	t.Helper()
	jobs := &recordingJobs{}
	s := NewScheduler(context.Background(), jobs)
	s.now = func() time.Time { return at }
	s.dispatch()
	return jobs
}

func TestDispatch_FixedSlots(t *testing.T) {
	// Tuesday 2024-03-12.
	jobs := dispatchAt(t, time.Date(2024, 3, 12, 7, 0, 0, 0, time.UTC))
	if len(jobs.summaries) != 1 || jobs.summaries[0] != model.MarketJP {
		t.Errorf("07:00 should run the JP summary, got %+v", jobs)
	}

	jobs = dispatchAt(t, time.Date(2024, 3, 12, 22, 0, 0, 0, time.UTC))
	if len(jobs.summaries) != 1 || jobs.summaries[0] != model.MarketUS {
		t.Errorf("22:00 should run the US summary, got %+v", jobs)
	}

	jobs = dispatchAt(t, time.Date(2024, 3, 12, 13, 0, 0, 0, time.UTC))
	if jobs.funds != 1 || len(jobs.ticks) != 0 {
		t.Errorf("13:00 should run the fund refresh, got %+v", jobs)
	}

	// Saturday 2024-03-16.
	jobs = dispatchAt(t, time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	if jobs.weeklies != 1 {
		t.Errorf("saturday 10:00 should run the weekly summary, got %+v", jobs)
	}

	// Weekday 10:00 is not the weekly slot.
	jobs = dispatchAt(t, time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC))
	if jobs.weeklies != 0 {
		t.Errorf("weekday 10:00 must not run the weekly summary, got %+v", jobs)
	}
}

func TestDispatch_MonitoringRouting(t *testing.T) {
	// 01:05 UTC Tuesday = 10:05 JST: JP session only.
	jobs := dispatchAt(t, time.Date(2024, 3, 12, 1, 5, 0, 0, time.UTC))
	if len(jobs.ticks) != 1 || jobs.ticks[0] != model.MarketJP {
		t.Errorf("expected one JP tick, got %+v", jobs.ticks)
	}

	// 15:05 UTC Tuesday = 11:05 New York: US session only.
	jobs = dispatchAt(t, time.Date(2024, 3, 12, 15, 5, 0, 0, time.UTC))
	if len(jobs.ticks) != 1 || jobs.ticks[0] != model.MarketUS {
		t.Errorf("expected one US tick, got %+v", jobs.ticks)
	}

	// Sunday: nothing runs.
	jobs = dispatchAt(t, time.Date(2024, 3, 17, 3, 5, 0, 0, time.UTC))
	if len(jobs.ticks) != 0 || len(jobs.summaries) != 0 || jobs.funds != 0 || jobs.weeklies != 0 {
		t.Errorf("sunday slot should be idle, got %+v", jobs)
	}
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &recordingJobs{})
	if err := s.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(s.Cron.Entries()) != 1 {
		t.Errorf("got %d cron entries, want 1", len(s.Cron.Entries()))
	}
}
