// Package counter issues per-agent, per-document-type sequence numbers
// that survive offline sessions and merge with the server by maximum.
package counter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"raccolta/internal/core/apperror"
	appctx "raccolta/internal/core/context"
	"raccolta/internal/core/numerator"
	"raccolta/internal/domain"
	"raccolta/pkg/logger"
)

var tracer = otel.Tracer("raccolta/counter")

// Validation bound: numbers further than this past the counter are rejected.
const maxAhead = 100

// Remote is the counter sync endpoint.
type Remote interface {
	SyncCounters(ctx context.Context, req SyncRequest) (SyncResponse, error)
}

// Metrics receives numbering events. Optional.
type Metrics interface {
	NumbersIssued(docType string, n int)
}

// Config binds the manager to one agent.
type Config struct {
	AgentID int64
	// AgentCode overrides the derived "AG%03d" code when set.
	AgentCode string
}

// Manager implements numerator.Generator on top of the local store.
//
// The store is the source of truth; the cache is write-through and is only
// updated after a successful persist. Every read-increment-write on a key
// runs under that key's mutex.
type Manager struct {
	counters  *domain.Collection[*Counter]
	agentID   int64
	agentCode string
	remote    Remote
	metrics   Metrics
	log       *logger.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	cache    map[string]Counter
	reserved map[string]*numerator.ReservedRange
}

var _ numerator.Generator = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithRemote sets the counter sync endpoint.
func WithRemote(r Remote) Option { return func(m *Manager) { m.remote = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(m *Manager) { m.log = l } }

// NewManager creates a counter manager for cfg.AgentID.
func NewManager(store domain.Store, cfg Config, opts ...Option) *Manager {
	code := cfg.AgentCode
	if code == "" {
		code = appctx.AgentCode(cfg.AgentID)
	}
	m := &Manager{
		counters:  domain.NewCollection[*Counter](store, domain.CollectionCounters),
		agentID:   cfg.AgentID,
		agentCode: code,
		log:       logger.Default(),
		locks:     make(map[string]*sync.Mutex),
		cache:     make(map[string]Counter),
		reserved:  make(map[string]*numerator.ReservedRange),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("counter")
	return m
}

// AgentID returns the bound agent.
func (m *Manager) AgentID() int64 { return m.agentID }

// AgentCode returns the code used in formatted names.
func (m *Manager) AgentCode() string { return m.agentCode }

// Load warms the cache with the agent's persisted counters.
func (m *Manager) Load(ctx context.Context) error {
	list, err := m.counters.FindBy(ctx, domain.IndexAgentID, strconv.FormatInt(m.agentID, 10))
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, c := range list {
		m.cache[c.Key] = *c
	}
	m.mu.Unlock()
	m.log.WithContext(ctx).Infow("counters loaded", "count", len(list))
	return nil
}

// FormatDocumentName renders a number with this agent's code.
func (m *Manager) FormatDocumentName(docType string, n int64) string {
	return numerator.FormatName(docType, m.agentCode, n)
}

func (m *Manager) key(docType string) string {
	return numerator.CounterKey(docType, m.agentID)
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// current returns the counter for key; found is false when it was never
// created. Caller holds the key lock.
func (m *Manager) current(ctx context.Context, key string) (c Counter, found bool, err error) {
	m.mu.Lock()
	cached, ok := m.cache[key]
	m.mu.Unlock()
	if ok {
		return cached, true, nil
	}

	stored, err := m.counters.Get(ctx, key)
	if apperror.IsNotFound(err) {
		return Counter{}, false, nil
	}
	if err != nil {
		return Counter{}, false, err
	}
	return *stored, true, nil
}

// persist writes c and then refreshes the cache. Caller holds the key lock.
func (m *Manager) persist(ctx context.Context, c Counter) error {
	c.LastUpdate = time.Now().UTC()
	if err := m.counters.Save(ctx, &c); err != nil {
		return err
	}
	m.mu.Lock()
	m.cache[c.Key] = c
	m.mu.Unlock()
	return nil
}

func (m *Manager) fresh(key, docType string) Counter {
	return Counter{Key: key, DocType: docType, AgentID: m.agentID}
}

// GetNextNumber persists value+1 and returns it. A counter is created at
// zero on first use.
func (m *Manager) GetNextNumber(ctx context.Context, docType string) (numerator.Number, error) {
	key := m.key(docType)
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	c, found, err := m.current(ctx, key)
	if err != nil {
		return numerator.Number{}, err
	}
	if !found {
		c = m.fresh(key, docType)
	}
	if c.Value == math.MaxInt64 {
		return numerator.Number{}, apperror.NewValidation("counter " + key + " is exhausted")
	}
	c.Value++
	if err := m.persist(ctx, c); err != nil {
		return numerator.Number{}, err
	}

	if m.metrics != nil {
		m.metrics.NumbersIssued(docType, 1)
	}
	m.log.WithContext(ctx).Debugw("number issued", "counter_key", key, "value", c.Value)
	return m.number(docType, key, c.Value), nil
}

// ReserveNumbers advances the counter by count (DefaultReserveCount when
// count <= 0) and keeps [old+1, old+count] in memory for offline draws.
// A previous unfinished reservation for the same type is replaced.
func (m *Manager) ReserveNumbers(ctx context.Context, docType string, count int64) (numerator.ReservedRange, error) {
	if count <= 0 {
		count = numerator.DefaultReserveCount
	}
	if count > numerator.MaxReserveCount {
		return numerator.ReservedRange{}, apperror.NewValidation(
			fmt.Sprintf("cannot reserve more than %d numbers at once", numerator.MaxReserveCount)).
			WithDetail("count", count)
	}
	key := m.key(docType)
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	c, found, err := m.current(ctx, key)
	if err != nil {
		return numerator.ReservedRange{}, err
	}
	if !found {
		c = m.fresh(key, docType)
	}
	if c.Value > math.MaxInt64-count {
		return numerator.ReservedRange{}, apperror.NewValidation("counter " + key + " cannot hold the reservation").
			WithDetail("count", count)
	}
	start := c.Value + 1
	c.Value += count
	c.ReservedUntil = c.Value
	if err := m.persist(ctx, c); err != nil {
		return numerator.ReservedRange{}, err
	}

	r := numerator.NewReservedRange(start, count)
	m.mu.Lock()
	m.reserved[key] = r
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.NumbersIssued(docType, int(count))
	}
	m.log.WithContext(ctx).Infow("numbers reserved", "counter_key", key, "start", r.Start, "end", r.End)
	return *r, nil
}

// GetNextReservedNumber draws from the active reservation. ok is false
// when there is none or it is exhausted; the caller then uses GetNextNumber.
func (m *Manager) GetNextReservedNumber(ctx context.Context, docType string) (numerator.Number, bool) {
	key := m.key(docType)
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reserved[key]
	if !ok {
		return numerator.Number{}, false
	}
	n, ok := r.Next()
	if !ok {
		return numerator.Number{}, false
	}
	return m.number(docType, key, n), true
}

// HasReservedNumbers reports whether a non-exhausted reservation exists.
func (m *Manager) HasReservedNumbers(docType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reserved[m.key(docType)]
	return ok && !r.Exhausted()
}

func (m *Manager) number(docType, key string, v int64) numerator.Number {
	return numerator.Number{
		Value:      v,
		Formatted:  m.FormatDocumentName(docType, v),
		CounterKey: key,
	}
}

// ValidateDocumentNumber is a local sanity bound, not a uniqueness check.
func (m *Manager) ValidateDocumentNumber(ctx context.Context, docType string, n int64) (Validation, error) {
	if n <= 0 {
		return Validation{Reason: "Numero deve essere positivo"}, nil
	}
	key := m.key(docType)
	l := m.lockFor(key)
	l.Lock()
	c, found, err := m.current(ctx, key)
	l.Unlock()
	if err != nil {
		return Validation{}, err
	}
	if !found {
		return Validation{Reason: "Contatore non inizializzato"}, nil
	}
	if n > c.Value+maxAhead {
		return Validation{Reason: "Numero troppo avanti rispetto al contatore"}, nil
	}
	return Validation{Valid: true}, nil
}

// List returns the agent's counters as stored.
func (m *Manager) List(ctx context.Context) ([]Counter, error) {
	list, err := m.counters.FindBy(ctx, domain.IndexAgentID, strconv.FormatInt(m.agentID, 10))
	if err != nil {
		return nil, err
	}
	out := make([]Counter, len(list))
	for i, c := range list {
		out[i] = *c
	}
	return out, nil
}

// SyncWithServer sends every local counter and persists max(local, remote)
// for each key the server returns. Conflicts are never errors.
func (m *Manager) SyncWithServer(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "counter.SyncWithServer")
	defer span.End()

	if m.remote == nil {
		return 0, apperror.NewOffline()
	}

	list, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	req := SyncRequest{Counters: make(map[string]CounterPayload, len(list)), AgentID: m.agentID}
	for _, c := range list {
		req.Counters[c.Key] = CounterPayload{Value: c.Value, AgentID: c.AgentID, LastUpdate: c.LastUpdate}
	}

	resp, err := m.remote.SyncCounters(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !resp.Success {
		return 0, apperror.NewSync(resp.Error, nil)
	}

	updated, err := m.MergeServerCounters(ctx, resp.ServerCounters)
	span.SetAttributes(attribute.Int("counters.sent", len(list)), attribute.Int("counters.updated", updated))
	if err != nil {
		return updated, err
	}
	m.log.WithContext(ctx).Infow("counters synced", "sent", len(list), "updated", updated)
	return updated, nil
}

// MergeServerCounters applies max-merge for every key owned by this agent
// and returns how many counters changed. Keys of other agents are ignored.
func (m *Manager) MergeServerCounters(ctx context.Context, remote map[string]ServerCounter) (int, error) {
	suffix := "_" + strconv.FormatInt(m.agentID, 10)
	updated := 0
	for key, sc := range remote {
		docType, ok := strings.CutSuffix(key, suffix)
		if !ok || docType == "" {
			continue
		}
		changed, err := m.mergeOne(ctx, key, docType, sc)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

func (m *Manager) mergeOne(ctx context.Context, key, docType string, sc ServerCounter) (bool, error) {
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	local, found, err := m.current(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		local = m.fresh(key, docType)
	}
	merged := local.Merge(sc)
	if found && merged.Value == local.Value && merged.ReservedUntil == local.ReservedUntil {
		return false, nil
	}
	if err := m.persist(ctx, merged); err != nil {
		return false, err
	}
	return true, nil
}

// Stats reports every counter of the agent keyed by document type.
func (m *Manager) Stats(ctx context.Context) (map[string]Stat, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Stat, len(list))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range list {
		st := Stat{
			DocType:       c.DocType,
			Value:         c.Value,
			ReservedUntil: c.ReservedUntil,
			LastUpdate:    c.LastUpdate,
		}
		if r, ok := m.reserved[c.Key]; ok && !r.Exhausted() {
			st.HasReserved = true
			st.Remaining = r.Remaining()
		}
		out[c.DocType] = st
	}
	return out, nil
}

// ResetCounter deletes a counter and its reservation. Debug only: numbers
// issued before the reset can be issued again.
func (m *Manager) ResetCounter(ctx context.Context, docType string) error {
	key := m.key(docType)
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if err := m.counters.Delete(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, key)
	delete(m.reserved, key)
	m.mu.Unlock()
	m.log.WithContext(ctx).Warnw("counter reset", "counter_key", key)
	return nil
}

// Export snapshots the agent's counters.
func (m *Manager) Export(ctx context.Context) (Backup, error) {
	list, err := m.List(ctx)
	if err != nil {
		return Backup{}, err
	}
	return Backup{
		AgentID:    m.agentID,
		AgentCode:  m.agentCode,
		ExportedAt: time.Now().UTC(),
		Counters:   list,
	}, nil
}

// Import merges a backup of this agent; counters never go backwards.
func (m *Manager) Import(ctx context.Context, b Backup) (int, error) {
	if b.AgentID != m.agentID {
		return 0, apperror.NewBusinessRule(apperror.CodeAgentMismatch,
			fmt.Sprintf("backup belongs to agent %d", b.AgentID)).
			WithDetail("expected_agent_id", m.agentID)
	}
	remote := make(map[string]ServerCounter, len(b.Counters))
	for _, c := range b.Counters {
		remote[c.Key] = ServerCounter{Value: c.Value, ReservedUntil: c.ReservedUntil}
	}
	return m.MergeServerCounters(ctx, remote)
}
