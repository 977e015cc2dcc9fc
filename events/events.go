package events

import (
	"context"
	"sync"

	"ads-manager/models"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// Event is a notification raised by the session and ad services
type Event interface {
	Name() string
}

type UserLoggedIn struct {
	User *models.User `json:"user"`
}

func (UserLoggedIn) Name() string { return "user.logged_in" }

type UserLoggedOut struct{}

func (UserLoggedOut) Name() string { return "user.logged_out" }

type AdSaved struct {
	Ad      *models.Ad `json:"ad"`
	Created bool       `json:"created"`
}

func (AdSaved) Name() string { return "ad.saved" }

type AdDeleted struct {
	AdID   int `json:"ad_id"`
	UserID int `json:"user_id"`
}

func (AdDeleted) Name() string { return "ad.deleted" }

// Publisher is what services depend on
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink forwards events outside the process
type Sink interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Bus fans events out to in-process subscribers and external sinks.
// A subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	sinks  []Sink
}

func NewBus(sinks ...Sink) *Bus {
	return &Bus{subs: make(map[int]chan Event), sinks: sinks}
}

// Subscribe returns a channel of events and a func that closes it
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			logger.Debug("Dropped event for slow subscriber", zap.String("event", e.Name()))
		}
	}
	b.mu.RUnlock()

	for _, s := range b.sinks {
		if err := s.Publish(ctx, "ads."+e.Name(), e); err != nil {
			logger.Error("Failed to forward event", zap.String("event", e.Name()), zap.Error(err))
		}
	}
}
