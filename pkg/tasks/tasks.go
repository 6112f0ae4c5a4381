package tasks

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid"

	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/log"
	"github.com/cuemby/dwn/pkg/metrics"
)

// Handler executes one task's work. It must be idempotent: a crash may
// cause the same task to run more than once.
type Handler func(tenantDid string, data map[string]any) error

// row is the persisted shape of one task.
type row struct {
	Id         string         `cbor:"id"`
	Name       string         `cbor:"name"`
	TenantDid  string         `cbor:"tenantDid"`
	Data       map[string]any `cbor:"data"`
	Timeout    time.Time      `cbor:"timeout"`
	RetryCount int            `cbor:"retryCount"`
}

// Manager is the resumable task manager (spec.md §4.9, C9).
type Manager struct {
	db   *kv.DB
	root *kv.Partition

	extendEvery time.Duration
	sweepEvery  time.Duration
	batchSize   int

	mu       sync.Mutex
	entropy  *ulid.MonotonicEntropy
	handlers map[string]Handler

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open opens (creating if necessary) the "tasks" top-level partition.
func Open(db *kv.DB) (*Manager, error) {
	root, err := db.Partition("tasks")
	if err != nil {
		return nil, fmt.Errorf("tasks: open: %w", err)
	}
	return &Manager{
		db:          db,
		root:        root,
		extendEvery: 10 * time.Second,
		sweepEvery:  30 * time.Second,
		batchSize:   50,
		entropy:     ulid.Monotonic(rand.Reader, 0),
		handlers:    map[string]Handler{},
		stopCh:      make(chan struct{}),
	}, nil
}

// RegisterHandler binds a task name to the function that executes it. Call
// before Start.
func (m *Manager) RegisterHandler(name string, fn Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = fn
}

func (m *Manager) newId() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), m.entropy)
	if err != nil {
		return "", fmt.Errorf("tasks: mint id: %w", err)
	}
	return id.String(), nil
}

// Enqueue persists a new task and starts its extension ticker. timeout is
// the initial deadline; Manager extends it by extendEvery while the task
// runs so a crashed process does not look like a still-running one.
func (m *Manager) Enqueue(tenantDid, name string, data map[string]any, timeout time.Time) (string, error) {
	id, err := m.newId()
	if err != nil {
		return "", err
	}
	r := row{Id: id, Name: name, TenantDid: tenantDid, Data: data, Timeout: timeout}
	if err := m.put(r); err != nil {
		return "", err
	}
	m.wg.Add(1)
	go m.run(r)
	return id, nil
}

func (m *Manager) put(r row) error {
	raw, err := cbor.Marshal(r)
	if err != nil {
		return fmt.Errorf("tasks: encode: %w", err)
	}
	return m.root.Put([]byte(r.Id), raw)
}

func (m *Manager) get(id string) (row, bool, error) {
	raw, found, err := m.root.Get([]byte(id))
	if err != nil || !found {
		return row{}, found, err
	}
	var r row
	if err := cbor.Unmarshal(raw, &r); err != nil {
		return row{}, false, fmt.Errorf("tasks: decode %s: %w", id, err)
	}
	return r, true, nil
}

func (m *Manager) delete(id string) error {
	return m.root.Delete([]byte(id))
}

// run extends r's timeout on a ticker while executing its handler in a
// retry loop; the handler's own goroutine owns r's lifecycle end to end.
func (m *Manager) run(r row) {
	defer m.wg.Done()

	extend := time.NewTicker(m.extendEvery)
	defer extend.Stop()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-extend.C:
				cur, found, err := m.get(r.Id)
				if err != nil || !found {
					return
				}
				cur.Timeout = time.Now().Add(m.extendEvery * 3)
				_ = m.put(cur)
			case <-done:
				return
			case <-m.stopCh:
				return
			}
		}
	}()

	m.execute(r)
	close(done)
}

// execute runs r's handler, retrying unboundedly on failure and deleting the
// row on success (spec.md §4.9's failure policy).
func (m *Manager) execute(r row) {
	for {
		ok, err := m.attempt(r)
		if ok {
			return
		}
		if err == nil {
			return // handler name unregistered; nothing more we can do
		}
		r.RetryCount++
		_ = m.put(r)
		log.WithTaskID(r.Id).Warn().Err(err).Str("name", r.Name).Int("retryCount", r.RetryCount).Msg("task attempt failed, retrying")
		select {
		case <-m.stopCh:
			return
		case <-time.After(backoff(r.RetryCount)):
		}
	}
}

// attempt runs r's handler exactly once. ok is true only when the handler
// reports success, in which case the row has already been deleted.
func (m *Manager) attempt(r row) (ok bool, err error) {
	m.mu.Lock()
	fn, found := m.handlers[r.Name]
	m.mu.Unlock()
	if !found {
		return false, nil
	}
	if err := fn(r.TenantDid, r.Data); err != nil {
		metrics.TasksSweptTotal.WithLabelValues("failure").Inc()
		return false, err
	}
	_ = m.delete(r.Id)
	metrics.TasksSweptTotal.WithLabelValues("success").Inc()
	log.WithTaskID(r.Id).Debug().Str("name", r.Name).Str("tenantDid", r.TenantDid).Msg("task completed")
	return true, nil
}

func backoff(retryCount int) time.Duration {
	d := time.Duration(retryCount) * time.Second
	if d > 30*time.Second {
		return 30 * time.Second
	}
	if d < time.Second {
		return time.Second
	}
	return d
}

// Sweep grabs every task whose timeout has elapsed and resumes it,
// continuing until a pass finds nothing left (spec.md §4.9's startup
// sweep). Call once after Open, before serving new messages: a grabbed
// task's first resumed attempt runs synchronously, so Sweep returning means
// every currently-due task has either completed or fallen back to a
// background retry loop (its row stays persisted, extended and retried the
// same way a freshly Enqueue'd task would be).
func (m *Manager) Sweep() error {
	for {
		batch, err := m.grab(m.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, r := range batch {
			ok, err := m.attempt(r)
			if ok {
				continue
			}
			if err == nil {
				continue // handler name unregistered
			}
			r.RetryCount++
			_ = m.put(r)
			m.wg.Add(1)
			go m.run(r)
		}
	}
}

// grab returns up to n timed-out rows (timeout < now), immediately bumping
// each row's persisted timeout so a concurrent or next-iteration grab does
// not claim the same row again while it runs.
func (m *Manager) grab(n int) ([]row, error) {
	var out []row
	now := time.Now()
	err := m.root.ForEach(func(e kv.Entry) bool {
		if len(out) >= n {
			return false
		}
		var r row
		if err := cbor.Unmarshal(e.Value, &r); err != nil {
			return true
		}
		if r.Timeout.Before(now) {
			out = append(out, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Timeout = now.Add(m.extendEvery * 3)
		if err := m.put(out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Start launches the background sweep loop that periodically re-grabs any
// task whose extension ticker stopped running (e.g. a handler panicked in
// a way the extend goroutine didn't catch). Call after an initial Sweep.
func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = m.Sweep()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop signals every running task loop to stop extending/retrying and waits
// for them to exit. In-flight handler calls are not interrupted — they run
// to completion or failure, and on failure the row is left for the next
// process's startup Sweep to resume.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}
