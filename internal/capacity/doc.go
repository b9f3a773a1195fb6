// Package capacity учитывает занятые слоты синхронизации зеркал.
//
// Tracker хранит число репозиториев, которые запланированы, но ещё не
// освободили слот. Счётчик живёт во внешнем KV (NATS), потому что его
// увеличивает Dispatcher одного процесса, а уменьшают события завершения,
// приходящие в любой экземпляр.
//
//	tracker := capacity.New(capacity.Config{
//	    Counter:     kv.NewCounter(buckets.Capacity, capacity.CounterKey),
//	    MaxCapacity: 100,
//	    Threshold:   1,
//	})
//
//	available, err := tracker.AvailableCapacity(ctx)
//
// Каждый проход пересчитывает счётчик по хранилищу (ResetScheduling)
// и запоминает момент подсчёта в ResetMarkKey. Событие о синхронизации,
// завершившейся раньше этого момента, слот не освобождает (UntrackCompleted).
package capacity
