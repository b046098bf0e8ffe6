package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery. Inserts run on the
// caller's transaction so an aggregate write and its events commit atomically.
type OutboxStore struct {
	pool querier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec querier) *OutboxStore {
	return &OutboxStore{pool: exec}
}

// InsertTx writes the records on tx. Pass the same transaction the aggregate
// row was written on.
func (s *OutboxStore) InsertTx(ctx context.Context, tx pgx.Tx, records []Record) error {
	return insertRecords(ctx, tx, records)
}

func insertRecords(ctx context.Context, db execer, records []Record) error {
	for _, rec := range records {
		data, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		_, err = db.Exec(ctx, `
			INSERT INTO outbox (id, aggregate_type, aggregate_id, clinic_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ID, rec.AggregateType, rec.AggregateID, rec.ClinicID, rec.Type, data, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert outbox event %s: %w", rec.Type, err)
		}
	}
	return nil
}

// PendingEvent is an undelivered outbox row.
type PendingEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	ClinicID      uuid.UUID
	Type          string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]PendingEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, clinic_id, event_type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}
	defer rows.Close()

	var pending []PendingEvent
	for rows.Next() {
		var ev PendingEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.ClinicID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		ev.Payload = append([]byte(nil), payload...)
		pending = append(pending, ev)
	}
	return pending, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark event delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// DeliveryHandler emits events to a downstream transport.
type DeliveryHandler interface {
	Handle(ctx context.Context, ev PendingEvent) error
}

type outboxSource interface {
	FetchPending(ctx context.Context, limit int32) ([]PendingEvent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Deliverer polls the outbox and invokes the handler for each pending event.
// A failed handler leaves the row undelivered; it is retried next tick.
type Deliverer struct {
	store     outboxSource
	handler   DeliveryHandler
	logger    zerolog.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store outboxSource, handler DeliveryHandler, logger zerolog.Logger) *Deliverer {
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 50,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Run blocks until ctx is cancelled.
func (d *Deliverer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DeliverOnce(ctx)
		}
	}
}

// DeliverOnce processes a single batch and reports how many events were delivered.
func (d *Deliverer) DeliverOnce(ctx context.Context) int {
	pending, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("fetch pending events")
		return 0
	}

	delivered := 0
	for _, ev := range pending {
		if err := d.handler.Handle(ctx, ev); err != nil {
			d.logger.Error().Err(err).Str("event_type", ev.Type).Stringer("event_id", ev.ID).Msg("deliver event")
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, ev.ID)
		if err != nil {
			d.logger.Error().Err(err).Stringer("event_id", ev.ID).Msg("mark event delivered")
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered
}
