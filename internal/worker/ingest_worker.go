package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"policyqa/internal/ai"
	"policyqa/internal/cache"
	"policyqa/internal/model"
	"policyqa/internal/platform/rabbitmq"
	"policyqa/internal/rag"
)

// IngestWorker consumes document IDs from the ingest queue and runs the
// pipeline for each. Retry policy for transient embedding-provider failures
// lives here, not in the pipeline. A per-document Redis lock keeps two
// deliveries for the same document from racing; the loser is requeued.
type IngestWorker struct {
	conn        *amqp.Connection
	ingestor    *rag.Ingestor
	docs        rag.DocumentStore
	lock        *cache.IngestLock
	queueName   string
	maxAttempts uint

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingestor *rag.Ingestor, docs rag.DocumentStore, lock *cache.IngestLock, queueName string, maxAttempts int) *IngestWorker {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &IngestWorker{
		conn:        conn,
		ingestor:    ingestor,
		docs:        docs,
		lock:        lock,
		queueName:   queueName,
		maxAttempts: uint(maxAttempts),
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
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
		return fmt.Errorf("declare ingest queue failed: %w", err)
	}

	// One unacked delivery at a time; ingestion is heavyweight.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
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
		return fmt.Errorf("consume ingest queue failed: %w", err)
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
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) handle(ctx context.Context, d amqp.Delivery) {
	var task rabbitmq.IngestTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Printf("ingest worker decode task failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	token, err := w.lock.Acquire(ctx, task.DocumentID)
	if err != nil {
		log.Printf("ingest worker lock document %d failed: %v", task.DocumentID, err)
		_ = d.Nack(false, true)
		return
	}
	if token == "" {
		// Another worker is ingesting this document; try again later.
		_ = d.Nack(false, true)
		return
	}
	defer func() {
		if err := w.lock.Release(ctx, task.DocumentID, token); err != nil {
			log.Printf("ingest worker unlock document %d failed: %v", task.DocumentID, err)
		}
	}()

	chunkCount, err := w.ingestWithRetry(ctx, task.DocumentID)
	if err != nil {
		log.Printf("ingest document %d failed: %v", task.DocumentID, err)
		if !w.settleFailure(task.DocumentID, err) {
			// The row does not record the outcome yet; keep the
			// delivery so a later attempt can settle it.
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	log.Printf("ingested document %d (%d chunks)", task.DocumentID, chunkCount)
	_ = d.Ack(false)
}

// settleFailure makes sure a terminally failed document never stays pending.
// The pipeline marks extraction, embedding, and index failures itself, but an
// error before the row was read or while flipping its status leaves it
// pending; the delivery may only be dropped once the row records the outcome.
func (w *IngestWorker) settleFailure(documentID uint, cause error) bool {
	doc, err := w.docs.GetByID(documentID)
	if err != nil {
		log.Printf("read document %d after failed ingest errored: %v", documentID, err)
		return false
	}
	if doc == nil || doc.Status != model.DocumentStatusPending {
		return true
	}
	reason := cause.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	if err := w.docs.UpdateStatus(documentID, model.DocumentStatusFailed, reason, 0); err != nil {
		log.Printf("mark document %d failed errored: %v", documentID, err)
		return false
	}
	return true
}

// ingestWithRetry retries only retryable embedding-provider failures with
// bounded exponential backoff. Extraction errors and pipeline bugs are
// terminal on the first attempt.
func (w *IngestWorker) ingestWithRetry(ctx context.Context, documentID uint) (int, error) {
	var chunkCount int

	operation := func() error {
		n, err := w.ingestor.Ingest(ctx, documentID)
		if err != nil {
			if retryableIngestError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		chunkCount = n
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(w.maxAttempts-1)), ctx))
	if err != nil {
		return 0, err
	}
	return chunkCount, nil
}

func retryableIngestError(err error) bool {
	if !errors.Is(err, rag.ErrEmbeddingProvider) {
		return false
	}
	var provErr *ai.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable()
	}
	return false
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
