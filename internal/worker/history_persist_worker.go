package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"policyqa/internal/cache"
	"policyqa/internal/platform/rabbitmq"
	"policyqa/internal/repository"
)

// HistoryPersistWorker writes chat exchanges from the history queue to the
// relational store and invalidates the user's cached history.
type HistoryPersistWorker struct {
	conn      *amqp.Connection
	repo      *repository.ChatHistoryRepository
	histCache *cache.HistoryCache
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHistoryPersistWorker(conn *amqp.Connection, repo *repository.ChatHistoryRepository, histCache *cache.HistoryCache, queueName string) *HistoryPersistWorker {
	return &HistoryPersistWorker{
		conn:      conn,
		repo:      repo,
		histCache: histCache,
		queueName: queueName,
	}
}

func (w *HistoryPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare history queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume history queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var msg rabbitmq.HistoryMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					log.Printf("history worker decode payload failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				entry := msg.ToEntry()
				if err := w.repo.Create(&entry); err != nil {
					log.Printf("history worker persist failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.histCache.Invalidate(workerCtx, entry.UserID); err != nil {
					log.Printf("history worker cache invalidate failed: %v", err)
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *HistoryPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
