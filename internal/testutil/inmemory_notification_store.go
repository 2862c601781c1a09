package testutil

import (
	"context"

	"github.com/worksphere/billing/internal/domain/notification"
)

// InMemoryNotificationStore implements notification.Repository
type InMemoryNotificationStore struct {
	*InMemoryStore[*notification.Log]
}

func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{InMemoryStore: NewInMemoryStore[*notification.Log]()}
}

func (s *InMemoryNotificationStore) Create(ctx context.Context, log *notification.Log) error {
	cp := *log
	return s.InMemoryStore.Create(ctx, log.ID, &cp)
}

func (s *InMemoryNotificationStore) HasSuccessful(ctx context.Context, key string) (bool, error) {
	n, err := s.InMemoryStore.Count(ctx, nil, func(_ context.Context, l *notification.Log, _ interface{}) bool {
		return l.Key == key && l.Status == notification.StatusSent
	})
	return n > 0, err
}

// All returns every log for assertions
func (s *InMemoryNotificationStore) All() []*notification.Log {
	items, _ := s.InMemoryStore.List(context.Background(), nil, nil, nil)
	return items
}
