// Package audit periodically reports settlement records that never left
// PENDING. It only observes; records are never modified here.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/rental_settlement/internal/app/metrics"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
	"github.com/R3E-Network/rental_settlement/internal/app/system"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

const (
	DefaultSchedule   = "@every 1m"
	DefaultPendingAge = 5 * time.Minute

	sweepTimeout = 30 * time.Second
)

// PendingAuditor sweeps for agreements stuck in PENDING.
type PendingAuditor struct {
	store      storage.AgreementStore
	schedule   string
	pendingAge time.Duration
	log        *logger.Logger
	now        func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*PendingAuditor)(nil)

// NewPendingAuditor creates an auditor. Empty schedule or non-positive age
// fall back to the defaults.
func NewPendingAuditor(store storage.AgreementStore, schedule string, pendingAge time.Duration, log *logger.Logger) *PendingAuditor {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if pendingAge <= 0 {
		pendingAge = DefaultPendingAge
	}
	if log == nil {
		log = logger.NewDefault("pending-audit")
	}
	return &PendingAuditor{
		store:      store,
		schedule:   schedule,
		pendingAge: pendingAge,
		log:        log,
		now:        time.Now,
	}
}

func (a *PendingAuditor) Name() string { return "pending-audit" }

// Start schedules the sweep.
func (a *PendingAuditor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(a.schedule, func() {
		sctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_, _ = a.Sweep(sctx)
	}); err != nil {
		return fmt.Errorf("schedule pending audit %q: %w", a.schedule, err)
	}
	c.Start()
	a.cron = c
	a.running = true
	a.log.WithField("schedule", a.schedule).Info("pending audit scheduled")
	return nil
}

// Stop cancels the schedule and waits for a running sweep.
func (a *PendingAuditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.running = false
	a.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep lists stale PENDING agreements, logs each one and returns the count.
func (a *PendingAuditor) Sweep(ctx context.Context) (int, error) {
	cutoff := a.now().Add(-a.pendingAge)
	stale, err := a.store.ListStaleAgreements(ctx, cutoff)
	if err != nil {
		metrics.RecordAuditRun(false)
		a.log.WithError(err).Warn("pending audit failed")
		return 0, err
	}

	for _, rec := range stale {
		a.log.WithFields(logrus.Fields{
			"agreement_id": rec.ID,
			"tenant_id":    rec.TenantID,
			"owner_id":     rec.OwnerID,
			"created_at":   rec.CreatedAt,
			"age":          a.now().Sub(rec.CreatedAt).Round(time.Second),
		}).Error("agreement stuck in PENDING; final write never happened")
	}

	metrics.SetPendingRecords(len(stale))
	metrics.RecordAuditRun(true)
	return len(stale), nil
}
