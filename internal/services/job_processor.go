package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

// Redis keys for reconciliation queues
const (
	ReconciliationQueueKey      = "reconciliation:queue"
	ReconciliationProcessingKey = "reconciliation:processing"
	ReconciliationScheduledKey  = "reconciliation:scheduled"
	ReconciliationFailedKey     = "reconciliation:failed"
)

// settleTimeout bounds the redis and intent writes that close out a job. They
// run on a fresh context so a job interrupted by Stop is still settled.
const settleTimeout = 5 * time.Second

// ReconciliationJob re-reads one document from the provider and brings the
// tenant's cached copy in line with it
type ReconciliationJob struct {
	ID          string    `json:"id"`
	IntentID    string    `json:"intent_id,omitempty"`
	TenantID    string    `json:"tenant_id"`
	DocumentID  string    `json:"document_id"`
	Action      string    `json:"action"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// ReconciliationProcessor consumes reconciliation jobs from redis with a
// fixed pool of workers
type ReconciliationProcessor struct {
	redis     *redis.Client
	cfg       *config.Config
	logger    *logger.Logger
	provider  SigningProviderClient
	documents repositories.DocumentCacheRepository
	intents   repositories.SyncIntentRepository
	tenants   repositories.TenantRepository
	metrics   *Metrics
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewReconciliationProcessor creates a new reconciliation processor
func NewReconciliationProcessor(
	redisClient *redis.Client,
	cfg *config.Config,
	logger *logger.Logger,
	provider SigningProviderClient,
	documents repositories.DocumentCacheRepository,
	intents repositories.SyncIntentRepository,
	tenants repositories.TenantRepository,
	metrics *Metrics,
) *ReconciliationProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	workers := cfg.Reconciliation.Workers
	if workers <= 0 {
		workers = 1
	}

	return &ReconciliationProcessor{
		redis:     redisClient,
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		documents: documents,
		intents:   intents,
		tenants:   tenants,
		metrics:   metrics,
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue records the intent and queues a job for it. The job is queued even
// when the intent row cannot be written.
func (p *ReconciliationProcessor) Enqueue(ctx context.Context, intent *models.SyncIntent) error {
	if err := p.intents.Create(ctx, intent); err != nil {
		p.logger.WithDocument(intent.TenantID, intent.ProviderDocumentID).
			WithError(err).
			Warn("Failed to record sync intent, queueing job only")
	}

	return p.push(ctx, p.jobFor(intent))
}

func (p *ReconciliationProcessor) jobFor(intent *models.SyncIntent) *ReconciliationJob {
	return &ReconciliationJob{
		ID:          uuid.NewString(),
		IntentID:    intent.ID,
		TenantID:    intent.TenantID,
		DocumentID:  intent.ProviderDocumentID,
		Action:      intent.Action,
		Attempts:    intent.Attempts,
		MaxAttempts: p.cfg.Reconciliation.MaxAttempts,
		EnqueuedAt:  time.Now(),
	}
}

func (p *ReconciliationProcessor) push(ctx context.Context, job *ReconciliationJob) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := p.redis.LPush(ctx, ReconciliationQueueKey, jobData).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Start begins processing jobs and requeues intents left pending by a
// previous run
func (p *ReconciliationProcessor) Start() {
	p.logger.WithField("workers", p.workers).Info("Starting reconciliation processor")

	p.requeuePending(p.ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.scheduledJobProcessor()
}

// Stop gracefully stops the processor
func (p *ReconciliationProcessor) Stop() {
	p.logger.Info("Stopping reconciliation processor")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Reconciliation processor stopped")
}

func (p *ReconciliationProcessor) requeuePending(ctx context.Context) {
	intents, err := p.intents.ListPending(ctx, 500)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to load pending sync intents")
		return
	}

	for _, intent := range intents {
		if err := p.push(ctx, p.jobFor(intent)); err != nil {
			p.logger.WithError(err).Warn("Failed to requeue sync intent")
			return
		}
	}

	if len(intents) > 0 {
		p.logger.WithField("count", len(intents)).Info("Requeued pending sync intents")
	}
}

// worker processes jobs from the queue
func (p *ReconciliationProcessor) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			result, err := p.redis.BRPopLPush(p.ctx, ReconciliationQueueKey, ReconciliationProcessingKey, time.Second).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || p.ctx.Err() != nil {
					continue
				}
				p.logger.WithField("worker_id", workerID).WithError(err).Warn("Failed to pop reconciliation job")
				time.Sleep(time.Second)
				continue
			}

			var job ReconciliationJob
			if err := json.Unmarshal([]byte(result), &job); err != nil {
				p.logger.WithField("worker_id", workerID).WithError(err).Error("Dropping malformed reconciliation job")
				settleCtx, cancel := context.WithTimeout(context.Background(), settleTimeout)
				p.redis.LRem(settleCtx, ReconciliationProcessingKey, 1, result)
				cancel()
				continue
			}

			p.processJob(&job, result)
		}
	}
}

// processJob runs one job and settles it in redis and the intent table. A job
// cut short by Stop goes back on the queue without spending an attempt.
func (p *ReconciliationProcessor) processJob(job *ReconciliationJob, raw string) {
	ctx, cancel := context.WithTimeout(p.ctx, time.Minute)
	defer cancel()

	settleCtx, settleCancel := context.WithTimeout(context.Background(), settleTimeout)
	defer settleCancel()
	defer p.redis.LRem(settleCtx, ReconciliationProcessingKey, 1, raw)

	err := p.Reconcile(ctx, job)
	if err == nil {
		p.observe("reconciled")
		return
	}

	if p.ctx.Err() != nil {
		p.redis.RPush(settleCtx, ReconciliationQueueKey, raw)
		p.logger.WithDocument(job.TenantID, job.DocumentID).Info("Reconciliation interrupted by shutdown, job requeued")
		return
	}

	job.Attempts++
	job.Error = err.Error()

	if job.IntentID != "" {
		if recErr := p.intents.RecordFailure(settleCtx, job.IntentID, err.Error(), job.MaxAttempts); recErr != nil {
			p.logger.WithError(recErr).Warn("Failed to record reconciliation failure")
		}
	}

	log := p.logger.WithDocument(job.TenantID, job.DocumentID).
		WithError(err).
		WithField("attempts", job.Attempts)

	if job.Attempts >= job.MaxAttempts {
		jobData, _ := json.Marshal(job)
		p.redis.LPush(settleCtx, ReconciliationFailedKey, jobData)
		p.observe("failed")
		log.Error("Reconciliation gave up")
		return
	}

	delay := time.Duration(job.Attempts*job.Attempts) * time.Second
	job.ScheduledAt = time.Now().Add(delay)
	jobData, _ := json.Marshal(job)
	p.redis.ZAdd(settleCtx, ReconciliationScheduledKey, &redis.Z{
		Score:  float64(job.ScheduledAt.Unix()),
		Member: jobData,
	})
	p.observe("retrying")
	log.WithField("delay", delay.String()).Warn("Reconciliation failed, rescheduled")
}

// Reconcile re-reads the document from the provider and upserts or deletes
// the tenant's cached copy. It never repeats the provider write.
func (p *ReconciliationProcessor) Reconcile(ctx context.Context, job *ReconciliationJob) error {
	if job.Action == models.ActionDelete {
		if err := p.documents.Delete(ctx, job.TenantID, job.DocumentID); err != nil {
			return fmt.Errorf("failed to delete cached document: %w", err)
		}
		return p.settle(ctx, job)
	}

	tenant, err := p.tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	creds, err := ResolveProviderCredentials(p.cfg, tenant)
	if err != nil {
		return err
	}

	document, err := p.provider.GetDocument(ctx, creds, job.DocumentID)
	if err != nil {
		var providerErr *ProviderError
		if errors.As(err, &providerErr) && providerErr.StatusCode == http.StatusNotFound {
			if err := p.documents.Delete(ctx, job.TenantID, job.DocumentID); err != nil {
				return fmt.Errorf("failed to delete cached document: %w", err)
			}
			return p.settle(ctx, job)
		}
		return fmt.Errorf("failed to read document from provider: %w", err)
	}

	row := models.NewCachedDocument(job.TenantID, document)
	row.ProviderDocumentID = job.DocumentID
	if err := p.documents.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert cached document: %w", err)
	}

	return p.settle(ctx, job)
}

func (p *ReconciliationProcessor) settle(ctx context.Context, job *ReconciliationJob) error {
	if job.IntentID == "" {
		return nil
	}
	if err := p.intents.MarkReconciled(ctx, job.IntentID); err != nil {
		p.logger.WithError(err).WithField("intent_id", job.IntentID).Warn("Failed to mark sync intent reconciled")
	}
	return nil
}

// scheduledJobProcessor moves retried jobs back to the queue when due
func (p *ReconciliationProcessor) scheduledJobProcessor() {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.Reconciliation.Interval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			now := float64(time.Now().Unix())

			jobs, err := p.redis.ZRangeByScore(p.ctx, ReconciliationScheduledKey, &redis.ZRangeBy{
				Min: "0",
				Max: fmt.Sprintf("%f", now),
			}).Result()
			if err != nil {
				p.logger.WithError(err).Warn("Failed to read scheduled reconciliation jobs")
				continue
			}

			for _, jobData := range jobs {
				if err := p.promote(jobData); err != nil {
					p.logger.WithError(err).Warn("Failed to requeue scheduled reconciliation job")
				}
			}
		}
	}
}

// promote moves one due job from the schedule to the queue in a single
// transaction
func (p *ReconciliationProcessor) promote(jobData string) error {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	_, err := p.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, ReconciliationScheduledKey, jobData)
		pipe.LPush(ctx, ReconciliationQueueKey, jobData)
		return nil
	})
	return err
}

func (p *ReconciliationProcessor) observe(result string) {
	if p.metrics != nil {
		p.metrics.ReconciliationsTotal.WithLabelValues(result).Inc()
	}
}
