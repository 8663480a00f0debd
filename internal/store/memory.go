package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"promohub/internal/apperror"
	"promohub/internal/models"
)

// Memory keeps every collection in process memory. Each collection has its
// own mutex; there is no finer locking. When a snapshot path is set the
// content is loaded at start and written back periodically and on Close.
type Memory struct {
	users    *memCollection[models.User]
	projects *memCollection[models.Project]
	posts    *memCollection[models.Post]
	groups   *memCollection[models.Group]
	reports  *memCollection[models.Report]
	adminDMs *memCollection[models.AdminDM]

	groupMessages *memLog[models.GroupMessage]
	publicChat    *memLog[models.PublicMessage]
	dms           *memDMs
	votes         *memVotes

	path   string
	logger *slog.Logger

	snapMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory store. With a non-empty path an existing
// snapshot is loaded; a missing file is not an error.
func NewMemory(path string, logger *slog.Logger) (*Memory, error) {
	m := &Memory{
		users:         newMemCollection[models.User]("user"),
		projects:      newMemCollection[models.Project]("project"),
		posts:         newMemCollection[models.Post]("post"),
		groups:        newMemCollection[models.Group]("group"),
		reports:       newMemCollection[models.Report]("report"),
		adminDMs:      newMemCollection[models.AdminDM]("admin dm"),
		groupMessages: newMemLog[models.GroupMessage](),
		publicChat:    newMemLog[models.PublicMessage](),
		dms:           &memDMs{memLog: newMemLog[models.DirectMessage]()},
		votes:         &memVotes{sets: make(map[string]map[string]struct{})},
		path:          path,
		logger:        logger,
	}

	if path != "" {
		if err := m.load(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Memory) Users() Collection[models.User]          { return m.users }
func (m *Memory) Projects() Collection[models.Project]    { return m.projects }
func (m *Memory) Posts() Collection[models.Post]          { return m.posts }
func (m *Memory) Groups() Collection[models.Group]        { return m.groups }
func (m *Memory) Reports() Collection[models.Report]      { return m.reports }
func (m *Memory) AdminDMs() Collection[models.AdminDM]    { return m.adminDMs }
func (m *Memory) GroupMessages() Log[models.GroupMessage] { return m.groupMessages }
func (m *Memory) PublicChat() Log[models.PublicMessage]   { return m.publicChat }
func (m *Memory) DirectMessages() DirectMessages          { return m.dms }
func (m *Memory) Votes() VoteSets                         { return m.votes }

// StartSnapshots writes a snapshot every interval until Close or ctx ends.
func (m *Memory) StartSnapshots(ctx context.Context, interval time.Duration) {
	if m.path == "" || interval <= 0 || m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := m.Snapshot(); err != nil {
					m.logger.Error("[STORE] Periodic snapshot failed", "path", m.path, "error", err)
				}
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the snapshot loop and writes a final snapshot.
func (m *Memory) Close(ctx context.Context) error {
	if m.stop != nil {
		close(m.stop)
		select {
		case <-m.done:
		case <-ctx.Done():
		}
		m.stop = nil
	}
	if m.path == "" {
		return nil
	}
	return m.Snapshot()
}

type memCollection[T Entity] struct {
	name  string
	mu    sync.RWMutex
	items map[string]T
}

func newMemCollection[T Entity](name string) *memCollection[T] {
	return &memCollection[T]{name: name, items: make(map[string]T)}
}

func (c *memCollection[T]) Get(_ context.Context, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.items[id]
	if !ok {
		var zero T
		return zero, apperror.NotFound(c.name, id)
	}
	return v, nil
}

func (c *memCollection[T]) List(_ context.Context, limit int) ([]T, error) {
	c.mu.RLock()
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	c.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *memCollection[T]) Upsert(_ context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[v.EntityID()] = v
	return nil
}

func (c *memCollection[T]) Apply(_ context.Context, id string, fn func(cur T, found bool) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, found := c.items[id]
	next, err := fn(cur, found)
	if err != nil {
		var zero T
		return zero, err
	}
	c.items[id] = next
	return next, nil
}

func (c *memCollection[T]) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return apperror.NotFound(c.name, id)
	}
	delete(c.items, id)
	return nil
}

func (c *memCollection[T]) all() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	sortNewestFirst(out)
	return out
}

func (c *memCollection[T]) replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T, len(items))
	for _, v := range items {
		c.items[v.EntityID()] = v
	}
}

func sortNewestFirst[T Entity](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].CreatedTime(), items[j].CreatedTime()
		if ti.Equal(tj) {
			return items[i].EntityID() > items[j].EntityID()
		}
		return ti.After(tj)
	})
}

type memLog[T any] struct {
	mu    sync.RWMutex
	items map[string][]T
}

func newMemLog[T any]() *memLog[T] {
	return &memLog[T]{items: make(map[string][]T)}
}

func (l *memLog[T]) Append(_ context.Context, key string, item T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[key] = append(l.items[key], item)
	return nil
}

func (l *memLog[T]) Tail(_ context.Context, key string, n int) ([]T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	items := l.items[key]
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out, nil
}

func (l *memLog[T]) export() map[string][]T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string][]T, len(l.items))
	for k, v := range l.items {
		cp := make([]T, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func (l *memLog[T]) replace(items map[string][]T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if items == nil {
		items = make(map[string][]T)
	}
	l.items = items
}

type memDMs struct {
	*memLog[models.DirectMessage]
}

func (d *memDMs) MarkRead(_ context.Context, key, readerID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := 0
	thread := d.items[key]
	for i := range thread {
		if thread[i].ToID == readerID && !thread[i].Read {
			thread[i].Read = true
			changed++
		}
	}
	return changed, nil
}

type memVotes struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func (v *memVotes) Add(_ context.Context, target, voter string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	set, ok := v.sets[target]
	if !ok {
		set = make(map[string]struct{})
		v.sets[target] = set
	}
	if _, dup := set[voter]; dup {
		return false, nil
	}
	set[voter] = struct{}{}
	return true, nil
}

func (v *memVotes) Remove(_ context.Context, target, voter string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if set, ok := v.sets[target]; ok {
		delete(set, voter)
		if len(set) == 0 {
			delete(v.sets, target)
		}
	}
	return nil
}

func (v *memVotes) Count(_ context.Context, target string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sets[target]), nil
}

func (v *memVotes) Clear(_ context.Context, target string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sets, target)
	return nil
}

func (v *memVotes) export() map[string][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string][]string, len(v.sets))
	for target, set := range v.sets {
		voters := make([]string, 0, len(set))
		for voter := range set {
			voters = append(voters, voter)
		}
		sort.Strings(voters)
		out[target] = voters
	}
	return out
}

func (v *memVotes) replace(in map[string][]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sets = make(map[string]map[string]struct{}, len(in))
	for target, voters := range in {
		set := make(map[string]struct{}, len(voters))
		for _, voter := range voters {
			set[voter] = struct{}{}
		}
		v.sets[target] = set
	}
}
