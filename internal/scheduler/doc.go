// Package scheduler реализует проход планирования синхронизаций зеркал.
//
// Проход (RunPass) под распределённым lease переводит в failed зависшие
// в scheduled синхронизации, пересчитывает занятые слоты, выбирает due
// зеркала пачками по курсору и ставит для них sync jobs, не превышая
// свободную capacity. Если после прохода слоты остались, Trigger сразу
// запускает следующий проход.
//
// Структура:
//   - scheduler.go  — Config, Scheduler, RunPass
//   - reclaim.go    — reclaim зависших синхронизаций
//   - selector.go   — выборка due зеркал по курсору
//   - dispatcher.go — перевод в scheduled и постановка jobs
//   - pickup.go     — ожидание, пока worker'ы заберут jobs
//   - trigger.go    — запуск проходов по cron и по требованию
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Store:    mirrorRepo,
//	    Lease:    kv.NewLease(buckets.Leases),
//	    Tracker:  tracker,
//	    Enqueuer: publisher,
//	    Pickup:   inspector, // опционально
//	    Logger:   logger,
//	})
//
//	trigger, _ := scheduler.NewTrigger(sched, "* * * * *", logger)
//	go trigger.Run(ctx)
package scheduler
