package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// errStoreDown はテスト用ストアの障害を表す。
var errStoreDown = errors.New("connection refused")

// memStore はテスト用のインメモリStore。
type memStore struct {
	mu    sync.Mutex
	items []Notification
	// fail がtrueの場合、すべての操作がerrStoreDownを返す。
	fail bool
	// markReadCalls はMarkReadが呼ばれた回数。
	markReadCalls int
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *memStore) Insert(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.items = append(m.items, *n)
	return nil
}

func (m *memStore) Find(_ context.Context, q Query) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}

	var out []Notification
	for _, n := range m.items {
		if n.Recipient != q.Recipient {
			continue
		}
		if q.OnlyUnread && n.IsRead {
			continue
		}
		if q.After != nil && !n.CreatedAt.After(*q.After) {
			continue
		}
		if q.Before != nil && !n.CreatedAt.Before(*q.Before) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, recipient string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errStoreDown
	}

	var count int64
	for _, n := range m.items {
		if n.Recipient == recipient && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memStore) MarkRead(_ context.Context, f ReadFilter, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markReadCalls++
	if m.fail {
		return 0, errStoreDown
	}

	ids := make(map[string]struct{}, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = struct{}{}
	}

	var updated int64
	for i := range m.items {
		n := &m.items[i]
		if n.Recipient != f.Recipient || n.IsRead {
			continue
		}
		if len(f.IDs) > 0 {
			if _, ok := ids[n.ID]; !ok {
				continue
			}
		} else if f.AllBefore == nil || n.CreatedAt.After(*f.AllBefore) {
			continue
		}
		readAt := at
		n.IsRead = true
		n.ReadAt = &readAt
		n.UpdatedAt = at
		updated++
	}
	return updated, nil
}

func (m *memStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	return nil
}

// get はIDで通知を取得する。
func (m *memStore) get(id string) (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// stepClock は呼ばれるたびにstepだけ進む時計。
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{now: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
