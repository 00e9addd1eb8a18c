// Package merge reconciles a terminal's local order cache against a remote
// snapshot using a bounded-staleness policy: a local copy is trusted over
// the remote one only while its last mutation is within the freshness
// window. Without the window, a local write racing the next remote read
// would either permanently hide new local orders or clobber fresh edits.
package merge

import (
	"sort"
	"time"

	"example.com/tavolo/possync/internal/models"
)

// DefaultFreshnessWindow bounds how long a local write is trusted over a
// conflicting remote read. It also bounds how long a local-only order
// survives without remote corroboration.
const DefaultFreshnessWindow = 60 * time.Second

// Result carries the merged snapshot plus what the merge decided, so the
// caller can count protected edits and dropped zombies without diffing.
type Result struct {
	Orders         []models.Order
	KeptLocal      int            // local copies that won over remote
	ZombiesDropped int            // stale local-only orders discarded
	NewFromRemote  []models.Order // remote orders not previously cached
}

// Orders merges a remote snapshot with the local one. Pure and idempotent:
// the same inputs always produce the same output.
//
// Rules:
//   - present in both: keep local iff it is fresh (within window of now)
//     AND strictly newer than the remote copy; otherwise take remote.
//   - local only: keep iff fresh; otherwise drop as a zombie.
//   - remote only: take remote.
//
// The result is sorted ascending by timestamp; department queues rely on
// this oldest-first ordering.
func Orders(remote, local []models.Order, now time.Time, window time.Duration) Result {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}

	localByID := make(map[string]models.Order, len(local))
	for _, o := range local {
		localByID[o.ID] = o
	}

	res := Result{Orders: make([]models.Order, 0, len(remote)+len(local))}
	seen := make(map[string]bool, len(remote))

	for _, remoteOrder := range remote {
		seen[remoteOrder.ID] = true
		localOrder, ok := localByID[remoteOrder.ID]
		if ok && fresh(localOrder.Timestamp, now, window) && localOrder.Timestamp.After(remoteOrder.Timestamp) {
			// An in-flight local edit the remote read has not caught up with.
			res.Orders = append(res.Orders, localOrder)
			res.KeptLocal++
			continue
		}
		if !ok {
			res.NewFromRemote = append(res.NewFromRemote, remoteOrder)
		}
		res.Orders = append(res.Orders, remoteOrder)
	}

	for _, localOrder := range local {
		if seen[localOrder.ID] {
			continue
		}
		if fresh(localOrder.Timestamp, now, window) {
			// Created offline moments ago, not yet propagated.
			res.Orders = append(res.Orders, localOrder)
			continue
		}
		// No remote corroboration and outside the window: a deleted or
		// never-committed order that must not resurrect.
		res.ZombiesDropped++
	}

	sort.SliceStable(res.Orders, func(i, j int) bool {
		return res.Orders[i].Timestamp.Before(res.Orders[j].Timestamp)
	})

	return res
}

func fresh(ts, now time.Time, window time.Duration) bool {
	return now.Sub(ts) <= window
}
