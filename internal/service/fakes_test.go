package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"sunnyapi/internal/events"
	"sunnyapi/internal/mailer"
	"sunnyapi/internal/model"
)

type fakeQueue struct {
	mu       sync.Mutex
	emails   []mailer.Message
	cleanups [][]string
	err      error
}

func (q *fakeQueue) EnqueueEmail(_ context.Context, msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails = append(q.emails, msg)
	return q.err
}

func (q *fakeQueue) EnqueueImageCleanup(_ context.Context, keys []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cleanups = append(q.cleanups, keys)
	return q.err
}

type sent struct {
	room string
	ev   events.Event
}

type fakeBroadcaster struct {
	sent []sent
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, room string, ev events.Event) error {
	b.sent = append(b.sent, sent{room: room, ev: ev})
	return nil
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data any) error {
	p.events = append(p.events, published{subject: subject, data: data})
	return nil
}

type notice struct {
	userID string
	kind   model.NotificationKind
	text   string
	link   string
}

// fakeNotifier records Notify calls; the other methods are unused by the services under test.
type fakeNotifier struct {
	NotificationService
	notices []notice
}

func (n *fakeNotifier) Notify(_ context.Context, userID string, kind model.NotificationKind, text, link string) (*model.Notification, error) {
	n.notices = append(n.notices, notice{userID: userID, kind: kind, text: text, link: link})
	return &model.Notification{UserID: userID, Kind: kind, Text: text, Link: link}, nil
}

func (n *fakeNotifier) kinds() []model.NotificationKind {
	out := make([]model.NotificationKind, 0, len(n.notices))
	for _, x := range n.notices {
		out = append(out, x.kind)
	}
	return out
}

type fakeListingCache struct {
	items    map[string]*model.Listing
	versions map[string]int64
	deleted  []string
	// onVersion runs after Version returns, between the version read and the database load.
	onVersion func()
}

func newFakeListingCache() *fakeListingCache {
	return &fakeListingCache{items: map[string]*model.Listing{}, versions: map[string]int64{}}
}

func (c *fakeListingCache) Get(_ context.Context, kind model.Kind, id string) (*model.Listing, error) {
	return c.items[string(kind)+":"+id], nil
}

func (c *fakeListingCache) Version(_ context.Context, kind model.Kind, id string) (int64, error) {
	v := c.versions[string(kind)+":"+id]
	if c.onVersion != nil {
		c.onVersion()
	}
	return v, nil
}

func (c *fakeListingCache) Set(_ context.Context, l *model.Listing, version int64) error {
	key := string(l.Kind) + ":" + l.ID
	if c.versions[key] != version {
		return nil
	}
	c.items[key] = l
	return nil
}

func (c *fakeListingCache) Delete(_ context.Context, kind model.Kind, id string) error {
	delete(c.items, string(kind)+":"+id)
	c.versions[string(kind)+":"+id]++
	c.deleted = append(c.deleted, id)
	return nil
}

var testLog = zap.NewNop()

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }
