// Package events потребляет события sync worker'ов из очереди mirrors.events
// и освобождает слоты capacity по завершении синхронизаций.
//
//	listener := events.NewListener(tracker, logger)
//	consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
//	    Queue:   string(mq.QueueMirrorEvents),
//	    Handler: listener.Handle,
//	})
//	go consumer.Start(ctx)
package events
