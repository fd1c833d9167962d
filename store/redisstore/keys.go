package redisstore

import (
	"fmt"
	"strings"
)

// channelSuffix names the pub/sub channel each pool publishes
// has-queued notifications on; it shares the P:queued key name with the
// queued-membership set by design (spec.md §3), since the two never
// collide in Redis (one is a channel, the other a set key).
const channelSuffix = "queued"

// validatePoolName rejects pool names that would corrupt key
// construction: pool names become key prefixes, so a ':' inside one
// would let a pool collide with another pool's keyspace or with a
// tagged-queue/session/delay key boundary.
func validatePoolName(pool string) error {
	if pool == "" {
		return fmt.Errorf("redisstore: pool name must not be empty")
	}
	if strings.Contains(pool, ":") {
		return fmt.Errorf("redisstore: pool name %q must not contain ':'", pool)
	}
	return nil
}

// channelName is the only per-pool key this package builds on the Go
// side. Every other key in spec.md §3 (P:all, P:queue, P:session:<o>,
// ...) is built inside the Lua scripts themselves (scripts.go), since an
// operation may touch an unbounded, data-dependent number of per-object
// keys that only the script knows at run time; duplicating that
// construction here would just be a second, driftable copy.
func channelName(pool string) string {
	return pool + ":" + channelSuffix
}
