package studio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"personastudio/internal/domain"
	"personastudio/internal/infra"
)

type entry struct {
	owner   string
	seq     *Sequence
	touched time.Time
}

// Registry keeps the studio sessions of the gateway keyed by id and scoped to
// the user who created them.
type Registry struct {
	ttl    time.Duration
	logger *infra.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

func NewRegistry(ttl time.Duration, logger *infra.Logger) *Registry {
	return &Registry{
		ttl:      ttl,
		logger:   infra.LoggerOrDiscard(logger),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create stores seq under a fresh id owned by owner.
func (r *Registry) Create(owner string, seq *Sequence) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &entry{owner: owner, seq: seq, touched: r.now()}
	r.mu.Unlock()
	return id
}

// Get returns the session only to its owner. Sessions of other users look
// missing.
func (r *Registry) Get(owner, id string) (*Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		return nil, domain.ErrNotFound
	}
	e.touched = r.now()
	return e.seq, nil
}

func (r *Registry) Delete(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Launch begins a run synchronously so precondition errors reach the caller,
// then finishes it in the background. The run keeps ctx values but not its
// cancellation, bounded by timeout.
func (r *Registry) Launch(ctx context.Context, owner, id string, timeout time.Duration) error {
	seq, err := r.Get(owner, id)
	if err != nil {
		return err
	}
	run, err := seq.Begin(ctx)
	if err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		if err := run(runCtx); err != nil {
			r.logger.Debug().Err(err).Str("session", id).Msg("studio: background run ended with error")
		}
	}()
	return nil
}

// Sweep drops idle sessions older than the TTL. Sessions with a run in flight
// are kept.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.sessions {
		if e.touched.After(cutoff) || e.seq.Snapshot().Running {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("studio: swept idle sessions")
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Wait blocks until background runs finish or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
