package ws

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"promohub/internal/models"
	"promohub/internal/store"
)

// maxCachedThreads bounds the DM threads kept in memory. Evicted threads are
// reloaded from the store on next use.
const maxCachedThreads = 1024

// History is the in-memory view of recent chat: the bounded public buffer
// and the most recently used DM threads.
type History struct {
	dms store.DirectMessages

	mu      sync.Mutex
	public  []models.PublicMessage
	threads *lru.Cache[string, []models.DirectMessage]
}

func NewHistory(dms store.DirectMessages) *History {
	return newHistory(dms, maxCachedThreads)
}

func newHistory(dms store.DirectMessages, maxThreads int) *History {
	if maxThreads <= 0 {
		maxThreads = maxCachedThreads
	}
	threads, _ := lru.New[string, []models.DirectMessage](maxThreads)
	return &History{
		dms:     dms,
		public:  make([]models.PublicMessage, 0, models.PublicBufferCapacity),
		threads: threads,
	}
}

// Warm fills the public buffer from the durable log.
func (h *History) Warm(ctx context.Context, log store.Log[models.PublicMessage]) error {
	msgs, err := log.Tail(ctx, store.PublicChannel, models.PublicBufferCapacity)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.public = append(h.public[:0], msgs...)
	return nil
}

// AppendPublic adds m, evicting the oldest message past capacity.
func (h *History) AppendPublic(m models.PublicMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.public) >= models.PublicBufferCapacity {
		copy(h.public, h.public[1:])
		h.public = h.public[:len(h.public)-1]
	}
	h.public = append(h.public, m)
}

// Recent returns up to n of the newest public messages, oldest first.
func (h *History) Recent(n int) []models.PublicMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	src := h.public
	if n >= 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]models.PublicMessage, len(src))
	copy(out, src)
	return out
}

// Thread returns the full thread for key. Callers hold the thread's channel
// lock, so concurrent loads of one key do not happen.
func (h *History) Thread(ctx context.Context, key string) ([]models.DirectMessage, error) {
	h.mu.Lock()
	cached, ok := h.threads.Get(key)
	if ok {
		out := make([]models.DirectMessage, len(cached))
		copy(out, cached)
		h.mu.Unlock()
		return out, nil
	}
	h.mu.Unlock()

	loaded, err := h.dms.Tail(ctx, key, 0)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.threads.Add(key, loaded)
	out := make([]models.DirectMessage, len(loaded))
	copy(out, loaded)
	h.mu.Unlock()
	return out, nil
}

// AppendDM adds m to its thread, loading the thread first when it is cold.
// The store already holds m when its write succeeded; it is not added twice.
func (h *History) AppendDM(ctx context.Context, key string, m models.DirectMessage) {
	thread, err := h.Thread(ctx, key)
	if err != nil {
		// fall back to an in-memory only thread
		thread = nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.threads.Get(key); ok {
		thread = cur
	}
	if n := len(thread); n > 0 && thread[n-1].ID == m.ID {
		return
	}
	h.threads.Add(key, append(thread, m))
}

// MarkRead flags cached messages addressed to readerID as read.
func (h *History) MarkRead(key, readerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	changed := 0
	thread, _ := h.threads.Get(key)
	for i := range thread {
		if thread[i].ToID == readerID && !thread[i].Read {
			thread[i].Read = true
			changed++
		}
	}
	return changed
}
