// Package audit records storage transactions in the audit_logs table.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Config sizes the write queue. Zero fields take defaults.
type Config struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	return c
}

// Entry is one storage transaction.
type Entry struct {
	TraceID     string
	Action      string
	Storage     entity.StorageID
	CharacterID string
	Request     any
	Result      string
	Error       string
	Duration    time.Duration
}

func (e Entry) row() *model.AuditLog {
	req, err := json.Marshal(e.Request)
	if err != nil {
		req = []byte("null")
	}
	return &model.AuditLog{
		TraceID:     e.TraceID,
		Action:      e.Action,
		StorageType: uint8(e.Storage.Type),
		OwnerID:     e.Storage.OwnerID,
		CharacterID: e.CharacterID,
		Request:     datatypes.JSON(req),
		Result:      e.Result,
		Error:       e.Error,
		DurationMs:  int(e.Duration.Milliseconds()),
	}
}

// Stats counts rows by outcome since start.
type Stats struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Queued  int    `json:"queued"`
}

// Service writes entries from a bounded queue in batches. Log never blocks
// the storage transaction that produced the entry.
type Service struct {
	db     *gorm.DB
	cfg    Config
	logger *zap.Logger

	queue chan *model.AuditLog
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	written, failed, dropped atomic.Uint64
}

// New starts a Service.
func New(db *gorm.DB, cfg Config, logger *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	svc := &Service{
		db:     db,
		cfg:    cfg,
		logger: logger.Named("audit"),
		queue:  make(chan *model.AuditLog, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	svc.wg.Add(1)
	go svc.run()
	return svc
}

// Log enqueues an entry, dropping it when the queue is full or the service
// has stopped.
func (svc *Service) Log(e Entry) {
	select {
	case <-svc.done:
		svc.drop(e, "stopped")
		return
	default:
	}
	select {
	case svc.queue <- e.row():
	default:
		svc.drop(e, "queue full")
	}
}

func (svc *Service) drop(e Entry, why string) {
	svc.dropped.Add(1)
	svc.logger.Warn("audit entry dropped",
		zap.String("reason", why),
		zap.String("action", e.Action),
		zap.String("trace_id", e.TraceID))
}

func (svc *Service) Stats() Stats {
	return Stats{
		Written: svc.written.Load(),
		Failed:  svc.failed.Load(),
		Dropped: svc.dropped.Load(),
		Queued:  len(svc.queue),
	}
}

// Stop drains the queue and waits for the last batch, or for ctx.
func (svc *Service) Stop(ctx context.Context) error {
	svc.once.Do(func() { close(svc.done) })
	finished := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (svc *Service) write(batch []*model.AuditLog) {
	if len(batch) == 0 {
		return
	}
	if err := svc.db.CreateInBatches(batch, svc.cfg.BatchSize).Error; err != nil {
		svc.failed.Add(uint64(len(batch)))
		svc.logger.Error("audit batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		return
	}
	svc.written.Add(uint64(len(batch)))
}

func (svc *Service) run() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, svc.cfg.BatchSize)
	add := func(row *model.AuditLog) {
		batch = append(batch, row)
		if len(batch) >= svc.cfg.BatchSize {
			svc.write(batch)
			batch = batch[:0]
		}
	}

	for {
		select {
		case row := <-svc.queue:
			add(row)
		case <-ticker.C:
			svc.write(batch)
			batch = batch[:0]
		case <-svc.done:
			for {
				select {
				case row := <-svc.queue:
					add(row)
				default:
					svc.write(batch)
					return
				}
			}
		}
	}
}
