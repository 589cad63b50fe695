// Package syncer replicates locally created documents and counters to the
// sync endpoint with bounded, persisted retry.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"raccolta/internal/core/apperror"
	appctx "raccolta/internal/core/context"
	"raccolta/internal/core/entity"
	"raccolta/internal/domain"
	"raccolta/internal/domain/documents/delivery_note"
	"raccolta/internal/domain/documents/sale_order"
	"raccolta/internal/domain/documents/stock_picking"
	"raccolta/pkg/logger"
)

var tracer = otel.Tracer("raccolta/syncer")

// Defaults applied by NewManager.
const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 30 * time.Second
)

// Categories of a sync pass, in the order they run.
const (
	CategoryOrders        = "orders"
	CategoryPickings      = "pickings"
	CategoryDeliveryNotes = "ddts"
	CategoryCounters      = "counters"
)

var categories = []string{CategoryOrders, CategoryPickings, CategoryDeliveryNotes, CategoryCounters}

// CounterSyncer pushes local counters and merges the server's answer.
type CounterSyncer interface {
	SyncWithServer(ctx context.Context) (int, error)
}

// Cleaner deletes synced documents older than a cutoff.
type Cleaner interface {
	CleanupSynced(ctx context.Context, cutoff time.Time) (int, error)
}

// Metrics receives sync outcomes. Optional.
type Metrics interface {
	DocumentSynced(docType string)
	DocumentFailed(docType string)
	PermanentFailure(docType string)
	QueueLength(n int)
	PassCompleted(kind string, d time.Duration)
}

// Config tunes retry and auto-sync.
type Config struct {
	MaxAttempts int
	Interval    time.Duration
}

// CategoryResult counts outcomes of one category in one pass.
type CategoryResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// Result aggregates a pass.
type Result struct {
	Synced  int                       `json:"synced"`
	Errors  int                       `json:"errors"`
	Details map[string]CategoryResult `json:"details"`
}

func newResult() Result {
	return Result{Details: make(map[string]CategoryResult, len(categories))}
}

func (r *Result) add(category string, synced, failed int) {
	c := r.Details[category]
	c.Synced += synced
	c.Errors += failed
	r.Details[category] = c
	r.Synced += synced
	r.Errors += failed
}

func (r *Result) merge(o Result) {
	if r.Details == nil {
		r.Details = make(map[string]CategoryResult, len(categories))
	}
	for category, d := range o.Details {
		r.add(category, d.Synced, d.Errors)
	}
}

// Manager runs sync passes. At most one pass (pending sync or queue drain)
// runs at a time; requests made meanwhile fail with SYNC_IN_PROGRESS.
type Manager struct {
	orders   *sale_order.Repository
	pickings *stock_picking.Repository
	ddts     *delivery_note.Repository
	queue    *domain.Collection[*QueueItem]
	meta     *domain.Collection[*metaEntry]

	remote   Remote
	counters CounterSyncer
	cleaner  Cleaner
	metrics  Metrics
	log      *logger.Logger
	cfg      Config
	now      func() time.Time

	syncing atomic.Bool
	online  atomic.Bool
	events  *broadcaster

	loopMu   sync.Mutex
	baseCtx  context.Context
	stopLoop context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithCounters enables the counters category.
func WithCounters(c CounterSyncer) Option { return func(m *Manager) { m.counters = c } }

// WithCleaner sets the document cleanup used by CleanupSyncData.
func WithCleaner(c Cleaner) Option { return func(m *Manager) { m.cleaner = c } }

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager creates a sync manager. It starts online; a network detector
// corrects that through HandleNetworkChange.
func NewManager(
	store domain.Store,
	orders *sale_order.Repository,
	pickings *stock_picking.Repository,
	ddts *delivery_note.Repository,
	remote Remote,
	cfg Config,
	opts ...Option,
) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Manager{
		orders:   orders,
		pickings: pickings,
		ddts:     ddts,
		queue:    domain.NewCollection[*QueueItem](store, domain.CollectionSyncQueue),
		meta:     domain.NewCollection[*metaEntry](store, domain.CollectionMeta),
		remote:   remote,
		cfg:      cfg,
		log:      logger.Default(),
		now:      time.Now,
		events:   newBroadcaster(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("syncer")
	m.online.Store(true)
	return m
}

// Subscribe registers for sync events. The returned func unsubscribes and
// closes the channel.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}

// IsSyncing reports whether a pass is running.
func (m *Manager) IsSyncing() bool { return m.syncing.Load() }

// IsOnline reports the last known connectivity.
func (m *Manager) IsOnline() bool { return m.online.Load() }

func (m *Manager) acquire() error {
	if !m.online.Load() {
		return apperror.NewOffline()
	}
	if !m.syncing.CompareAndSwap(false, true) {
		return apperror.NewSyncInProgress()
	}
	return nil
}

func (m *Manager) release() { m.syncing.Store(false) }

// SyncPendingData pushes every pending document not tracked by the retry
// queue: orders, then pickings, then delivery notes, then counters.
// Per-document failures are counted, never returned.
func (m *Manager) SyncPendingData(ctx context.Context) (Result, error) {
	if err := m.acquire(); err != nil {
		return Result{}, err
	}
	defer m.release()
	return m.syncPending(appctx.EnsureTrace(ctx))
}

// ProcessRetryQueue retries queued documents by priority, then age.
func (m *Manager) ProcessRetryQueue(ctx context.Context) (Result, error) {
	if err := m.acquire(); err != nil {
		return Result{}, err
	}
	defer m.release()
	return m.drainQueue(appctx.EnsureTrace(ctx))
}

// SyncNow retries queued documents and then pushes pending ones, both
// under the same single-flight guard. It is the work of one automatic tick.
func (m *Manager) SyncNow(ctx context.Context) (Result, error) {
	if err := m.acquire(); err != nil {
		return Result{}, err
	}
	defer m.release()
	return m.drainThenPush(appctx.EnsureTrace(ctx))
}

// drainThenPush gives each document at most one attempt: items that fail
// again in the drain stay queued and are skipped by the pending pass.
func (m *Manager) drainThenPush(ctx context.Context) (Result, error) {
	res, err := m.drainQueue(ctx)
	if err != nil {
		return Result{}, err
	}
	if !m.online.Load() {
		return res, nil
	}
	pending, err := m.syncPending(ctx)
	if err != nil {
		return Result{}, err
	}
	res.merge(pending)
	return res, nil
}

// ForceSyncAll drops all retry bookkeeping and runs a full pending pass.
func (m *Manager) ForceSyncAll(ctx context.Context) (Result, error) {
	if err := m.acquire(); err != nil {
		return Result{}, err
	}
	defer m.release()
	ctx = appctx.EnsureTrace(ctx)
	if err := m.queue.Clear(ctx); err != nil {
		return Result{}, err
	}
	m.log.WithContext(ctx).Infow("retry queue cleared, forcing full sync")
	return m.syncPending(ctx)
}

func (m *Manager) syncPending(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "syncer.SyncPendingData")
	defer span.End()
	start := m.now()
	log := m.log.WithContext(ctx)

	queued, err := m.queuedIDs(ctx)
	if err != nil {
		return m.fail(ctx, span, err)
	}

	res := newResult()
	steps := []func(context.Context, map[string]struct{}, *Result) error{
		m.syncPendingOrders,
		m.syncPendingPickings,
		m.syncPendingDeliveryNotes,
		m.syncCounters,
	}
	for i, step := range steps {
		if err := step(ctx, queued, &res); err != nil {
			return m.fail(ctx, span, err)
		}
		m.events.publish(Event{
			Type:    EventProgress,
			Message: "sync " + categories[i],
			Current: i + 1,
			Total:   len(steps),
			Synced:  res.Synced,
			Errors:  res.Errors,
		})
	}

	if err := m.setLastSync(ctx, m.now()); err != nil {
		log.Warnw("last sync time not stored", "error", err)
	}
	m.finish(ctx, span, "pending", start, res)
	return res, nil
}

func (m *Manager) drainQueue(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "syncer.ProcessRetryQueue")
	defer span.End()
	start := m.now()

	items, err := m.queue.All(ctx)
	if err != nil {
		return m.fail(ctx, span, err)
	}
	sortQueue(items)

	res := newResult()
	for _, item := range items {
		if err := m.retryItem(ctx, item, &res); err != nil {
			return m.fail(ctx, span, err)
		}
	}
	m.finish(ctx, span, "retry", start, res)
	return res, nil
}

func (m *Manager) fail(ctx context.Context, span trace.Span, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	m.log.WithContext(ctx).Errorw("sync pass aborted", "error", err)
	m.events.publish(Event{Type: EventError, Message: err.Error()})
	return Result{}, err
}

func (m *Manager) finish(ctx context.Context, span trace.Span, kind string, start time.Time, res Result) {
	span.SetAttributes(
		attribute.String("sync.kind", kind),
		attribute.Int("sync.synced", res.Synced),
		attribute.Int("sync.errors", res.Errors),
	)
	if m.metrics != nil {
		m.metrics.PassCompleted(kind, m.now().Sub(start))
		if n, err := m.queueLength(ctx); err == nil {
			m.metrics.QueueLength(n)
		}
	}
	m.log.WithContext(ctx).Infow("sync pass completed", "kind", kind, "synced", res.Synced, "errors", res.Errors)
	m.events.publish(Event{Type: EventCompleted, Synced: res.Synced, Errors: res.Errors, Details: res.Details})
}

func (m *Manager) queuedIDs(ctx context.Context) (map[string]struct{}, error) {
	items, err := m.queue.All(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.LocalID] = struct{}{}
	}
	return ids, nil
}

func (m *Manager) queueLength(ctx context.Context) (int, error) {
	items, err := m.queue.All(ctx)
	return len(items), err
}

func (m *Manager) syncPendingOrders(ctx context.Context, queued map[string]struct{}, res *Result) error {
	list, err := m.orders.ListByStatus(ctx, entity.SyncPending)
	if err != nil {
		return err
	}
	for _, o := range list {
		if _, ok := queued[o.LocalID]; ok {
			continue
		}
		if err := m.syncOrder(ctx, o, res); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) syncPendingPickings(ctx context.Context, queued map[string]struct{}, res *Result) error {
	list, err := m.pickings.ListByStatus(ctx, entity.SyncPending)
	if err != nil {
		return err
	}
	for _, p := range list {
		if _, ok := queued[p.LocalID]; ok {
			continue
		}
		if err := m.syncPicking(ctx, p, res); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) syncPendingDeliveryNotes(ctx context.Context, queued map[string]struct{}, res *Result) error {
	list, err := m.ddts.ListByStatus(ctx, entity.SyncPending)
	if err != nil {
		return err
	}
	for _, d := range list {
		if _, ok := queued[d.LocalID]; ok {
			continue
		}
		if err := m.syncDeliveryNote(ctx, d, res); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) syncCounters(ctx context.Context, _ map[string]struct{}, res *Result) error {
	if m.counters == nil {
		return nil
	}
	if _, err := m.counters.SyncWithServer(ctx); err != nil {
		m.log.WithContext(ctx).Warnw("counter sync failed", "error", err)
		res.add(CategoryCounters, 0, 1)
		return nil
	}
	res.add(CategoryCounters, 1, 0)
	return nil
}

func (m *Manager) syncOrder(ctx context.Context, o *sale_order.Order, res *Result) error {
	return syncDocument(ctx, m, m.orders.Collection, o, CategoryOrders, res, func(ctx context.Context) (DocumentResponse, error) {
		return m.remote.SyncOrder(ctx, newOrderRequest(o))
	})
}

func (m *Manager) syncPicking(ctx context.Context, p *stock_picking.Picking, res *Result) error {
	return syncDocument(ctx, m, m.pickings.Collection, p, CategoryPickings, res, func(ctx context.Context) (DocumentResponse, error) {
		return m.remote.SyncPicking(ctx, newPickingRequest(p))
	})
}

func (m *Manager) syncDeliveryNote(ctx context.Context, d *delivery_note.DeliveryNote, res *Result) error {
	return syncDocument(ctx, m, m.ddts.Collection, d, CategoryDeliveryNotes, res, func(ctx context.Context) (DocumentResponse, error) {
		return m.remote.SyncDeliveryNote(ctx, newDeliveryNoteRequest(d))
	})
}

type syncable interface {
	domain.Storable
	Base() *entity.Document
}

// syncDocument sends one document. Remote failures are routed to retry
// handling and counted; only storage failures are returned.
func syncDocument[T syncable](
	ctx context.Context,
	m *Manager,
	repo *domain.Collection[T],
	doc T,
	category string,
	res *Result,
	send func(context.Context) (DocumentResponse, error),
) error {
	base := doc.Base()
	ctx, span := tracer.Start(ctx, "syncer.syncDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.type", base.DocType),
		attribute.String("document.local_id", base.LocalID),
	)

	resp, err := send(ctx)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		span.RecordError(err)
		res.add(category, 0, 1)
		return handleFailure(ctx, m, repo, doc, err)
	}

	base.MarkSynced(resp.ID(), m.now())
	if err := repo.Save(ctx, doc); err != nil {
		return err
	}
	if err := m.queue.Delete(ctx, base.LocalID); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.DocumentSynced(base.DocType)
	}
	res.add(category, 1, 0)
	m.log.WithContext(ctx).Debugw("document synced", "doc_type", base.DocType, "name", base.Name, "server_id", resp.ID())
	return nil
}

func checkResponse(resp DocumentResponse) error {
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "sync rejected by server"
		}
		return apperror.NewSync(msg, nil)
	}
	if resp.ID() == 0 {
		return apperror.NewSync("server returned no document id", nil)
	}
	return nil
}

// handleFailure counts a failed attempt. The failure that brings attempts
// to MaxAttempts moves the document to error and drops its queue item.
func handleFailure[T syncable](ctx context.Context, m *Manager, repo *domain.Collection[T], doc T, cause error) error {
	base := doc.Base()
	log := m.log.WithContext(ctx)
	if m.metrics != nil {
		m.metrics.DocumentFailed(base.DocType)
	}

	item, err := m.queue.Get(ctx, base.LocalID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := m.now().UTC()
		item = &QueueItem{
			LocalID:     base.LocalID,
			DocType:     base.DocType,
			Priority:    PriorityOf(base.DocType),
			CreatedAt:   now,
			MaxAttempts: m.cfg.MaxAttempts,
		}
	case err != nil:
		return err
	}

	item.Attempts++
	item.LastError = errorMessage(cause)
	item.UpdatedAt = m.now().UTC()

	if !item.Exhausted() {
		log.Warnw("document sync failed, queued for retry",
			"doc_type", base.DocType, "name", base.Name,
			"attempt", item.Attempts, "max_attempts", item.MaxAttempts, "error", cause)
		return m.queue.Save(ctx, item)
	}

	base.MarkSyncError(item.LastError)
	if err := repo.Save(ctx, doc); err != nil {
		return err
	}
	if err := m.queue.Delete(ctx, base.LocalID); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.PermanentFailure(base.DocType)
	}
	log.Errorw("document sync failed permanently",
		"doc_type", base.DocType, "name", base.Name, "attempts", item.Attempts, "error", cause)
	return nil
}

func errorMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			return appErr.Message + ": " + appErr.Err.Error()
		}
		return appErr.Message
	}
	return err.Error()
}

// retryItem dispatches one queue item to its document type. Items whose
// document is gone or no longer pending are dropped.
func (m *Manager) retryItem(ctx context.Context, item *QueueItem, res *Result) error {
	switch item.DocType {
	case entity.DocTypeSaleOrder:
		o, err := m.orders.Get(ctx, item.LocalID)
		if drop, err := m.stale(ctx, item, err, o); drop || err != nil {
			return err
		}
		return m.syncOrder(ctx, o, res)
	case entity.DocTypeStockPicking:
		p, err := m.pickings.Get(ctx, item.LocalID)
		if drop, err := m.stale(ctx, item, err, p); drop || err != nil {
			return err
		}
		return m.syncPicking(ctx, p, res)
	case entity.DocTypeDeliveryNote:
		d, err := m.ddts.Get(ctx, item.LocalID)
		if drop, err := m.stale(ctx, item, err, d); drop || err != nil {
			return err
		}
		return m.syncDeliveryNote(ctx, d, res)
	default:
		m.log.WithContext(ctx).Warnw("unknown queue item dropped", "doc_type", item.DocType, "local_id", item.LocalID)
		return m.queue.Delete(ctx, item.LocalID)
	}
}

func (m *Manager) stale(ctx context.Context, item *QueueItem, getErr error, doc syncable) (bool, error) {
	if getErr != nil {
		if !errors.Is(getErr, domain.ErrNotFound) {
			return false, getErr
		}
		return true, m.queue.Delete(ctx, item.LocalID)
	}
	if doc.Base().SyncStatus != entity.SyncPending {
		return true, m.queue.Delete(ctx, item.LocalID)
	}
	return false, nil
}
