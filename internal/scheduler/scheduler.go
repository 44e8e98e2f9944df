// Package scheduler runs the monthly receipt batch on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"gestion-locative/internal/audit"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"
	"gestion-locative/internal/receipt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobTimeout = 10 * time.Minute

type MonthlyGenerator interface {
	GenerateMonth(ctx context.Context, month time.Time, buildingIDs []uint, onlyPaid bool) (*receipt.BatchResult, error)
}

type Job struct {
	db       *gorm.DB
	log      *zap.Logger
	receipts MonthlyGenerator
	onlyPaid bool
	now      func() time.Time
}

func NewJob(db *gorm.DB, log *zap.Logger, receipts MonthlyGenerator, onlyPaid bool) *Job {
	return &Job{db: db, log: log, receipts: receipts, onlyPaid: onlyPaid, now: time.Now}
}

func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

// Run generates the receipts of the current month and writes one audit
// entry for the batch.
func (j *Job) Run(ctx context.Context) (*receipt.BatchResult, error) {
	month := period.MonthStart(j.now())
	res, err := j.receipts.GenerateMonth(ctx, month, nil, j.onlyPaid)
	if err != nil {
		j.log.Error("génération planifiée des quittances", zap.Time("month", month), zap.Error(err))
		return nil, err
	}
	for _, e := range res.Errors {
		j.log.Warn("quittance non générée", zap.Uint("lease_id", e.LeaseID), zap.String("error", e.Error))
	}
	err = audit.WriteLog(j.db, audit.LogOptions{
		Actor:       audit.System("scheduler"),
		EntityType:  "receipt",
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("génération automatique %s : %d quittance(s), %d erreur(s)", res.Month, len(res.Generated), len(res.Errors)),
	})
	if err != nil {
		j.log.Warn("audit génération planifiée", zap.Error(err))
	}
	return res, nil
}

// Start registers the job on schedule and starts the cron. An empty
// schedule disables it and returns a nil cron.
func Start(schedule string, job *Job, log *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		log.Info("génération automatique des quittances désactivée")
		return nil, nil
	}
	cl := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_, _ = job.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("RECEIPT_CRON %q: %w", schedule, err)
	}
	c.Start()
	log.Info("génération automatique des quittances planifiée", zap.String("schedule", schedule), zap.Bool("only_paid", job.onlyPaid))
	return c, nil
}
