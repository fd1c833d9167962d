package redisstore

import (
	"context"

	"github.com/opoolio/opool"
)

// Subscribe implements opool.Notifier. It opens a dedicated Redis PubSub
// connection (pub/sub mode precludes ordinary commands on the same
// connection, per spec.md §4.2) scoped to pool's channel; the connection
// is torn down when the returned cancel function is called or ctx is
// done. Reconnection after a dropped PubSub connection is the go-redis
// client's own responsibility.
func (s *RedisStore) Subscribe(ctx context.Context, pool string) (<-chan opool.Notification, func(), error) {
	if err := validatePoolName(pool); err != nil {
		return nil, nil, err
	}
	sub := s.rdb.Subscribe(ctx, channelName(pool))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan opool.Notification, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = sub.Close()
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- opool.Notification{}:
				default:
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}
