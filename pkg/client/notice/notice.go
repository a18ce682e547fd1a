// Package notice is a small pub/sub bus for user-facing toasts. UI layers
// subscribe; the form controller and API client publish.
package notice

import "sync"

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is one transient message.
type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Publisher accepts notices. Publish must never block the caller.
type Publisher interface {
	Publish(n Notice)
}

// Discard drops every notice.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Notice) {}

// Bus fans notices out to subscribers. A subscriber whose buffer is full
// misses the notice; publishers are never held up by a slow UI.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Notice
	next    uint64
	closed  bool
	dropped uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Notice)}
}

// Subscribe returns a channel receiving notices published from now on and a
// func that unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Notice, func()) {
	ch := make(chan Notice, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	key := b.next
	b.next++
	b.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[key]; ok {
				delete(b.subs, key)
				close(c)
			}
		})
	}
}

func (b *Bus) Publish(n Notice) {
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.dropped++
		}
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, ch := range b.subs {
		delete(b.subs, key)
		close(ch)
	}
}

// Recorder keeps every notice in order. Useful in tests and headless clients.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Publish(n Notice) {
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
