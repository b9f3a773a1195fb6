package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, cronExpr, err)
	}
	return nil
}

// PassRunner выполняет проход планирования.
type PassRunner interface {
	RunPass(ctx context.Context) (PassResult, error)
}

// Trigger запускает проходы по расписанию и по требованию.
//
// Проходы в одном процессе выполняются строго последовательно.
// Запросы, пришедшие во время прохода, схлопываются в один следующий.
type Trigger struct {
	runner   PassRunner
	schedule string
	logger   *slog.Logger
	kick     chan struct{}
}

// NewTrigger создаёт Trigger. schedule — cron-выражение (5 полей или @every).
func NewTrigger(runner PassRunner, schedule string, logger *slog.Logger) (*Trigger, error) {
	if err := ValidateCronExpr(schedule); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		runner:   runner,
		schedule: schedule,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}, nil
}

// Kick запрашивает проход. Не блокируется.
func (t *Trigger) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Run обслуживает расписание до отмены ctx.
func (t *Trigger) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DiscardLogger)))
	if _, err := c.AddFunc(t.schedule, t.Kick); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, t.schedule, err)
	}
	c.Start()
	defer c.Stop()

	t.logger.Info("trigger started", "schedule", t.schedule)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("trigger stopped")
			return ctx.Err()
		case <-t.kick:
			t.runOnce(ctx)
		}
	}
}

func (t *Trigger) runOnce(ctx context.Context) {
	result, err := t.runner.RunPass(ctx)
	if err != nil {
		// Следующий триггер начнёт проход с нуля
		t.logger.Error("scheduling pass failed", "pass_id", result.PassID, "error", err)
		return
	}
	if result.Rescheduled {
		t.logger.Debug("capacity left, scheduling next pass immediately", "pass_id", result.PassID)
		t.Kick()
	}
}
