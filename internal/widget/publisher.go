// Package widget publishes a small projection of favorite prayers for the
// home-screen widget and signals it to reload.
package widget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/dispatch"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
)

// Item is one prayer as the widget sees it.
type Item struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Category  models.Category `json:"category"`
	Target    string          `json:"target"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Key is the shared store key for a storage's favorites.
func Key(s models.Storage) string {
	return "FavoritePrayers_" + string(s)
}

// FavoritesFunc loads every favorite prayer.
type FavoritesFunc func() ([]models.Prayer, error)

// Project groups favorites by storage and keeps the newest maxItems of each,
// with title and content truncated. Every storage has an entry, possibly empty.
func Project(favorites []models.Prayer, maxItems int) map[models.Storage][]Item {
	grouped := make(map[models.Storage][]models.Prayer, len(models.AllStorages))
	for _, p := range favorites {
		if !p.IsFavorite {
			continue
		}
		grouped[p.Storage] = append(grouped[p.Storage], p)
	}

	out := make(map[models.Storage][]Item, len(models.AllStorages))
	for _, s := range models.AllStorages {
		prayers := grouped[s]
		sort.SliceStable(prayers, func(i, j int) bool {
			return prayers[i].CreatedAt.After(prayers[j].CreatedAt)
		})
		if len(prayers) > maxItems {
			prayers = prayers[:maxItems]
		}
		items := make([]Item, 0, len(prayers))
		for _, p := range prayers {
			items = append(items, Item{
				ID:        p.ID,
				Title:     truncate(p.Title, constants.WidgetTitleMaxLength),
				Content:   truncate(p.Content, constants.WidgetContentMaxLength),
				Category:  p.Category,
				Target:    p.Target,
				CreatedAt: p.CreatedAt,
			})
		}
		out[s] = items
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Publisher writes widget snapshots in the background. Refresh only signals;
// the write and the reload signal happen on the publisher's own goroutine and
// the main queue respectively.
type Publisher struct {
	favorites FavoritesFunc
	store     *SharedStore
	surface   Surface
	queue     *dispatch.MainQueue
	maxItems  int

	signal chan struct{}
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPublisher(favorites FavoritesFunc, store *SharedStore, surface Surface, queue *dispatch.MainQueue, maxItems int) *Publisher {
	if maxItems <= 0 || maxItems > constants.WidgetMaxItems {
		maxItems = constants.WidgetMaxItems
	}
	return &Publisher{
		favorites: favorites,
		store:     store,
		surface:   surface,
		queue:     queue,
		maxItems:  maxItems,
		signal:    make(chan struct{}, 1),
	}
}

// Start runs the refresh loop until Stop is called or ctx is done.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the loop. A refresh that was already signalled is published first.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh asks for a new snapshot without waiting for it.
func (p *Publisher) Refresh() {
	select {
	case p.signal <- struct{}{}:
	default:
		// a refresh is already pending and will read the latest state
	}
}

func (p *Publisher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-p.signal:
			p.refreshNow()
		case <-ctx.Done():
			select {
			case <-p.signal:
				p.refreshNow()
			default:
			}
			return
		}
	}
}

func (p *Publisher) refreshNow() {
	favorites, err := p.favorites()
	if err != nil {
		logger.Warn("Failed to load favorites for widget", "error", err)
		return
	}
	if err := p.Publish(Project(favorites, p.maxItems)); err != nil {
		logger.Warn("Failed to publish widget snapshot", "error", err)
	}
}

// Publish writes every group to the shared store, then posts the reload
// signal to the main queue.
func (p *Publisher) Publish(groups map[models.Storage][]Item) error {
	for _, s := range models.AllStorages {
		items := groups[s]
		if items == nil {
			items = []Item{}
		}
		if err := p.store.Write(Key(s), items); err != nil {
			return fmt.Errorf("failed to write widget snapshot for %s: %w", s, err)
		}
	}
	if p.surface != nil {
		if p.queue == nil || !p.queue.Post(p.surface.ReloadAll) {
			logger.Debug("Main queue unavailable, reloading widget inline")
			p.surface.ReloadAll()
		}
	}
	return nil
}

// Snapshot reads back what the widget currently sees for a storage.
func (p *Publisher) Snapshot(s models.Storage) ([]Item, error) {
	return ReadSnapshot(p.store, s)
}

func ReadSnapshot(store *SharedStore, s models.Storage) ([]Item, error) {
	var items []Item
	if _, err := store.Read(Key(s), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}
