package opool_test

import (
	"context"
	"sync"
	"time"

	"github.com/opoolio/opool"
)

// fakeStore is an in-memory opool.Store used to unit-test Claim, Client,
// ObjectPool, Dispatcher, Registry and Bootstrap without a Redis
// dependency. It mirrors the Lua scripts in store/redisstore closely
// enough to exercise the same state-machine semantics spec.md describes,
// trading their single-script atomicity for a single mutex.
type fakeStore struct {
	mu sync.Mutex

	all         map[string]map[string]bool
	queue       map[string][]string
	queued      map[string]map[string]bool
	claimed     map[string][]string
	delayedQ    map[string][]string
	sessions    map[string]map[string]fakeLease
	delays      map[string]map[string]time.Time
	tags        map[string]map[string]map[string]string
	taggedQueue map[string]map[string][]string
	subs        map[string][]chan opool.Notification
}

type fakeLease struct {
	session   string
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		all:         make(map[string]map[string]bool),
		queue:       make(map[string][]string),
		queued:      make(map[string]map[string]bool),
		claimed:     make(map[string][]string),
		delayedQ:    make(map[string][]string),
		sessions:    make(map[string]map[string]fakeLease),
		delays:      make(map[string]map[string]time.Time),
		tags:        make(map[string]map[string]map[string]string),
		taggedQueue: make(map[string]map[string][]string),
		subs:        make(map[string][]chan opool.Notification),
	}
}

func (s *fakeStore) ensure(pool string) {
	if s.all[pool] == nil {
		s.all[pool] = make(map[string]bool)
		s.queued[pool] = make(map[string]bool)
		s.sessions[pool] = make(map[string]fakeLease)
		s.delays[pool] = make(map[string]time.Time)
		s.tags[pool] = make(map[string]map[string]string)
		s.taggedQueue[pool] = make(map[string][]string)
	}
}

func removeFirst(s []string, v string) []string {
	for i, e := range s {
		if e == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (s *fakeStore) publish(pool string) {
	for _, ch := range s.subs[pool] {
		select {
		case ch <- opool.Notification{}:
		default:
		}
	}
}

func (s *fakeStore) requeueTagIndices(pool, o string) {
	for t, v := range s.tags[pool][o] {
		key := t + ":" + v
		s.taggedQueue[pool][key] = append(s.taggedQueue[pool][key], o)
	}
}

func (s *fakeStore) removeTagIndices(pool, o string) {
	for t, v := range s.tags[pool][o] {
		key := t + ":" + v
		s.taggedQueue[pool][key] = removeFirst(s.taggedQueue[pool][key], o)
		if len(s.taggedQueue[pool][key]) == 0 {
			delete(s.taggedQueue[pool], key)
		}
	}
}

func (s *fakeStore) QueueTagged(ctx context.Context, pool string, tags map[string]string, objects []string, delay time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)

	newObjects := make([]string, 0, len(objects))
	for _, o := range objects {
		if !s.all[pool][o] {
			newObjects = append(newObjects, o)
			s.all[pool][o] = true
		}
	}
	if len(newObjects) == 0 {
		return newObjects, nil
	}
	if len(tags) > 0 {
		for _, o := range newObjects {
			if s.tags[pool][o] == nil {
				s.tags[pool][o] = make(map[string]string)
			}
			for t, v := range tags {
				s.tags[pool][o][t] = v
			}
		}
	}
	if delay > 0 {
		for _, o := range newObjects {
			s.delayedQ[pool] = append(s.delayedQ[pool], o)
			s.delays[pool][o] = time.Now().Add(delay)
		}
		return newObjects, nil
	}
	for _, o := range newObjects {
		s.queued[pool][o] = true
		s.queue[pool] = append(s.queue[pool], o)
		s.requeueTagIndices(pool, o)
	}
	s.publish(pool)
	return newObjects, nil
}

func (s *fakeStore) Claim(ctx context.Context, pool string, maxCount int, expiration time.Duration, tag string, session string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)

	if maxCount == 0 {
		return []string{}, nil
	}

	var popped []string
	if tag == "" || maxCount == 1 {
		for len(popped) < maxCount && len(s.queue[pool]) > 0 {
			o := s.queue[pool][0]
			s.queue[pool] = s.queue[pool][1:]
			popped = append(popped, o)
		}
	} else {
		if len(s.queue[pool]) == 0 {
			return []string{}, nil
		}
		h := s.queue[pool][0]
		s.queue[pool] = s.queue[pool][1:]
		popped = append(popped, h)
		if v, ok := s.tags[pool][h][tag]; ok {
			key := tag + ":" + v
			s.taggedQueue[pool][key] = removeFirst(s.taggedQueue[pool][key], h)
			for len(popped) < maxCount && len(s.taggedQueue[pool][key]) > 0 {
				o := s.taggedQueue[pool][key][0]
				s.taggedQueue[pool][key] = s.taggedQueue[pool][key][1:]
				popped = append(popped, o)
				s.queue[pool] = removeFirst(s.queue[pool], o)
			}
			if len(s.taggedQueue[pool][key]) == 0 {
				delete(s.taggedQueue[pool], key)
			}
		}
	}

	for _, o := range popped {
		delete(s.queued[pool], o)
		s.sessions[pool][o] = fakeLease{session: session, expiresAt: time.Now().Add(expiration)}
		s.removeTagIndices(pool, o)
		s.claimed[pool] = append(s.claimed[pool], o)
	}
	return popped, nil
}

func (s *fakeStore) checkSessions(pool string, objects []string, session string) bool {
	for _, o := range objects {
		lease, ok := s.sessions[pool][o]
		if !ok || lease.session != session {
			return false
		}
	}
	return true
}

func (s *fakeStore) Extend(ctx context.Context, pool string, objects []string, session string, expiration time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)
	if !s.checkSessions(pool, objects, session) {
		return false, nil
	}
	for _, o := range objects {
		s.sessions[pool][o] = fakeLease{session: session, expiresAt: time.Now().Add(expiration)}
		s.claimed[pool] = removeFirst(s.claimed[pool], o)
		s.claimed[pool] = append(s.claimed[pool], o)
	}
	return true, nil
}

func (s *fakeStore) Release(ctx context.Context, pool string, objects []string, session string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)
	if !s.checkSessions(pool, objects, session) {
		return false, nil
	}
	for _, o := range objects {
		delete(s.sessions[pool], o)
		delete(s.tags[pool], o)
		delete(s.all[pool], o)
		s.claimed[pool] = removeFirst(s.claimed[pool], o)
	}
	return true, nil
}

func (s *fakeStore) Requeue(ctx context.Context, pool string, objects []string, session string, delay time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)
	if !s.checkSessions(pool, objects, session) {
		return false, nil
	}
	for _, o := range objects {
		delete(s.sessions[pool], o)
		s.claimed[pool] = removeFirst(s.claimed[pool], o)
	}
	if delay > 0 {
		for _, o := range objects {
			s.delayedQ[pool] = append(s.delayedQ[pool], o)
			s.delays[pool][o] = time.Now().Add(delay)
		}
		return true, nil
	}
	for _, o := range objects {
		s.queued[pool][o] = true
		s.queue[pool] = append(s.queue[pool], o)
		s.requeueTagIndices(pool, o)
	}
	s.publish(pool)
	return true, nil
}

func (s *fakeStore) CleanExpired(ctx context.Context, pool string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)
	var moved []string
	now := time.Now()
	for len(s.claimed[pool]) > 0 {
		o := s.claimed[pool][0]
		lease, ok := s.sessions[pool][o]
		if ok && now.Before(lease.expiresAt) {
			break
		}
		s.claimed[pool] = s.claimed[pool][1:]
		delete(s.sessions[pool], o)
		moved = append(moved, o)
	}
	for _, o := range moved {
		s.queued[pool][o] = true
		s.queue[pool] = append(s.queue[pool], o)
		s.requeueTagIndices(pool, o)
	}
	if len(moved) > 0 {
		s.publish(pool)
	}
	return moved, nil
}

func (s *fakeStore) CleanDelayed(ctx context.Context, pool string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(pool)
	var moved []string
	now := time.Now()
	for len(s.delayedQ[pool]) > 0 {
		o := s.delayedQ[pool][0]
		expiresAt, ok := s.delays[pool][o]
		if ok && now.Before(expiresAt) {
			break
		}
		s.delayedQ[pool] = s.delayedQ[pool][1:]
		delete(s.delays[pool], o)
		moved = append(moved, o)
	}
	for _, o := range moved {
		s.queued[pool][o] = true
		s.queue[pool] = append(s.queue[pool], o)
		s.requeueTagIndices(pool, o)
	}
	if len(moved) > 0 {
		s.publish(pool)
	}
	return moved, nil
}

func (s *fakeStore) Subscribe(ctx context.Context, pool string) (<-chan opool.Notification, func(), error) {
	s.mu.Lock()
	ch := make(chan opool.Notification, 4)
	s.subs[pool] = append(s.subs[pool], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[pool]
		for i, c := range list {
			if c == ch {
				s.subs[pool] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	return ch, cancel, nil
}

var _ opool.Store = (*fakeStore)(nil)
