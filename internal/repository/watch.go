package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"sublease-service/internal/model"
)

const (
	notifyChannel     = "locations_changed"
	listenMinInterval = 10 * time.Second
	listenMaxInterval = time.Minute
	listenPingEvery   = 90 * time.Second
)

// Watcher hands out live views of the locations collection. Every change
// to the table fires the notify trigger, and each subscription re-reads
// the full collection and pushes the snapshot to its consumer.
type Watcher struct {
	dsn  string
	repo *LocationRepository
}

func NewWatcher(dsn string, repo *LocationRepository) *Watcher {
	return &Watcher{dsn: dsn, repo: repo}
}

// Subscription is a live query handle. Snapshots arrive on C, newest
// wins when the consumer lags. The consumer must call Close.
type Subscription struct {
	C <-chan []model.Location

	listener  *pq.Listener
	closed    chan struct{}
	closeOnce sync.Once
}

// Subscribe opens a listener on the notify channel and pushes an initial
// snapshot followed by one per change. It stops when ctx is cancelled or
// Close is called.
func (w *Watcher) Subscribe(ctx context.Context) (*Subscription, error) {
	listener := pq.NewListener(w.dsn, listenMinInterval, listenMaxInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("locations listener event")
			}
		})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("Watcher.Subscribe: %w", err)
	}

	ch := make(chan []model.Location, 1)
	sub := &Subscription{
		C:        ch,
		listener: listener,
		closed:   make(chan struct{}),
	}
	go sub.run(ctx, w.repo, ch)
	return sub, nil
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.listener.Close()
	})
}

func (s *Subscription) run(ctx context.Context, repo *LocationRepository, ch chan []model.Location) {
	defer close(ch)

	push := func() {
		list, err := repo.List(ctx)
		if err != nil {
			log.Error().Err(err).Msg("snapshot locations")
			return
		}
		// replace a stale unread snapshot rather than blocking
		select {
		case ch <- list:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- list:
			default:
			}
		}
	}

	push()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.closed:
			return
		case _, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// a nil notification means the connection was re-established;
			// re-sync in that case too
			push()
		case <-time.After(listenPingEvery):
			if err := s.listener.Ping(); err != nil {
				log.Warn().Err(err).Msg("locations listener ping")
			}
		}
	}
}
