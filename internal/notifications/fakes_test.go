package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shafin96/pulsegram/backend/internal/models"
)

// fakeEventRepo is an in-memory stand-in for the postgres event store.
type fakeEventRepo struct {
	mu         sync.Mutex
	events     []models.Notification
	failCreate bool
}

func (f *fakeEventRepo) Create(n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return fmt.Errorf("store unavailable")
	}
	f.events = append(f.events, *n)
	return nil
}

func (f *fakeEventRepo) RecentByRecipient(recipientID uint, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, e := range f.events {
		if e.RecipientID == recipientID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEventRepo) UnreadCount(recipientID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.events {
		if e.RecipientID == recipientID && e.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventRepo) MarkRead(recipientID uint, ids []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for i := range f.events {
		e := &f.events[i]
		if _, ok := wanted[e.ID]; ok && e.RecipientID == recipientID && e.ReadAt == nil {
			t := at
			e.ReadAt = &t
		}
	}
	return nil
}

func (f *fakeEventRepo) MarkAllRead(recipientID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		e := &f.events[i]
		if e.RecipientID == recipientID && e.ReadAt == nil {
			t := at
			e.ReadAt = &t
		}
	}
	return nil
}

func (f *fakeEventRepo) readAt(id string) *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return e.ReadAt
		}
	}
	return nil
}

func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeUserRepo is an in-memory identity resolver.
type fakeUserRepo struct {
	users map[uint]models.User
}

func (f *fakeUserRepo) CreateUser(user *models.User) error { return nil }

func (f *fakeUserRepo) GetUserByID(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (f *fakeUserRepo) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (f *fakeUserRepo) GetUsersByIDs(ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateUser(user *models.User) error { return nil }

// fakeSubsRepo is an in-memory subscription store.
type fakeSubsRepo struct {
	mu   sync.Mutex
	subs []models.PushSubscription
}

func (f *fakeSubsRepo) Upsert(sub *models.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].Endpoint == sub.Endpoint {
			f.subs[i] = *sub
			return nil
		}
	}
	f.subs = append(f.subs, *sub)
	return nil
}

func (f *fakeSubsRepo) ByRecipient(recipientID uint) ([]models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PushSubscription
	for _, s := range f.subs {
		if s.RecipientID == recipientID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubsRepo) DeleteByEndpoint(recipientID uint, endpoint string) error { return nil }

// fakeSender records every delivery attempt and can fail chosen endpoints.
type fakeSender struct {
	mu        sync.Mutex
	attempted []string
	failOn    map[string]struct{}
}

func (f *fakeSender) Send(_ context.Context, sub models.PushSubscription, _ []byte) error {
	f.mu.Lock()
	f.attempted = append(f.attempted, sub.Endpoint)
	f.mu.Unlock()
	if _, ok := f.failOn[sub.Endpoint]; ok {
		return fmt.Errorf("endpoint gone")
	}
	return nil
}

func (f *fakeSender) attempts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.attempted))
	copy(out, f.attempted)
	return out
}

// fakePublisher captures realtime publishes on a channel so async delivery
// can be awaited.
type fakePublisher struct {
	published chan models.Notification
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan models.Notification, 8)}
}

func (f *fakePublisher) PublishNotification(_ uint, event models.Notification, _ models.UserCompact) {
	f.published <- event
}
