package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"gopherai-workspace/internal/metrics"
	"gopherai-workspace/internal/model"
	rabbitmqClient "gopherai-workspace/internal/platform/rabbitmq"
)

const saveTimeout = 10 * time.Second

type PromptSaver interface {
	SavePrompt(ctx context.Context, rec model.PromptRecord) error
}

// CacheInvalidator drops cached prompt lists once a new record is stored.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, wsID, userID uint) error
}

type PromptPersistWorker struct {
	conn      *amqp.Connection
	saver     PromptSaver
	cache     CacheInvalidator
	queueName string
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPromptPersistWorker(
	conn *amqp.Connection,
	saver PromptSaver,
	cache CacheInvalidator,
	queueName string,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *PromptPersistWorker {
	return &PromptPersistWorker{
		conn:      conn,
		saver:     saver,
		cache:     cache,
		queueName: queueName,
		logger:    logger.With().Str("component", "prompt_worker").Logger(),
		metrics:   m,
	}
}

func (w *PromptPersistWorker) Start(ctx context.Context) error {
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

	if _, err := rabbitmqClient.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
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
		return fmt.Errorf("consume queue failed: %w", err)
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
					w.logger.Warn().Msg("delivery channel closed")
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.logger.Info().Str("queue", w.queueName).Msg("prompt worker started")
	return nil
}

// handle stores one queued record. A returned error means the delivery is
// dropped without requeue.
func (w *PromptPersistWorker) handle(ctx context.Context, body []byte) error {
	var rec model.PromptRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		w.logger.Error().Err(err).Msg("decode prompt failed")
		w.count("decode_error")
		return err
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := w.saver.SavePrompt(saveCtx, rec); err != nil {
		w.logger.Error().Err(err).
			Uint("ws_id", rec.WorkspaceID).
			Str("session_id", rec.SessionID).
			Msg("persist prompt failed")
		w.count("save_error")
		return err
	}

	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, rec.WorkspaceID, rec.UserID); err != nil {
			w.logger.Warn().Err(err).Uint("ws_id", rec.WorkspaceID).Msg("invalidate prompt cache failed")
		}
	}
	w.count("ok")
	return nil
}

func (w *PromptPersistWorker) count(result string) {
	if w.metrics != nil {
		w.metrics.PromptsPersisted.WithLabelValues(result).Inc()
	}
}

func (w *PromptPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
