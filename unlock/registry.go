////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package unlock keeps track of paid photo unlocks, which last for a limited
// time.
package unlock

import (
	"sort"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

// ExpiryCallback is called when an unlock runs out.
type ExpiryCallback func(photoID string)

type grant struct {
	until time.Time
	timer *time.Timer
}

// Registry holds the active unlocks.
type Registry struct {
	grants   map[string]*grant
	onExpire ExpiryCallback
	now      func() time.Time
	closed   bool
	mux      sync.Mutex
}

// NewRegistry returns an empty registry. onExpire may be nil.
func NewRegistry(onExpire ExpiryCallback) *Registry {
	return &Registry{
		grants:   make(map[string]*grant),
		onExpire: onExpire,
		now:      netTime.Now,
	}
}

// Grant unlocks photoID until the given time, replacing any earlier grant.
// It returns false if until has already passed or the registry is closed.
func (r *Registry) Grant(photoID string, until time.Time) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.closed {
		return false
	}

	remaining := until.Sub(r.now())
	if remaining <= 0 {
		return false
	}
	if old, ok := r.grants[photoID]; ok {
		old.timer.Stop()
	}

	g := &grant{until: until}
	g.timer = time.AfterFunc(remaining, func() { r.expire(photoID, g) })
	r.grants[photoID] = g
	jww.DEBUG.Printf("[UNLOCK] %s unlocked for %s", photoID, remaining)
	return true
}

func (r *Registry) expire(photoID string, g *grant) {
	r.mux.Lock()
	if r.closed || r.grants[photoID] != g {
		r.mux.Unlock()
		return
	}
	delete(r.grants, photoID)
	cb := r.onExpire
	r.mux.Unlock()

	if cb != nil {
		cb(photoID)
	}
}

func (r *Registry) IsUnlocked(photoID string) bool {
	return r.Remaining(photoID) > 0
}

// Remaining returns how long photoID stays unlocked, or zero.
func (r *Registry) Remaining(photoID string) time.Duration {
	r.mux.Lock()
	defer r.mux.Unlock()
	g, ok := r.grants[photoID]
	if !ok {
		return 0
	}
	if d := g.until.Sub(r.now()); d > 0 {
		return d
	}
	return 0
}

// Unlocked lists the unlocked photos, sorted.
func (r *Registry) Unlocked() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	ids := make([]string, 0, len(r.grants))
	for id := range r.grants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset cancels every timer and forgets every grant. Unlike Close, new
// grants are accepted afterwards.
func (r *Registry) Reset() {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.resetLocked()
}

// Close cancels every timer and forgets every grant.
func (r *Registry) Close() {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.closed = true
	r.resetLocked()
}

func (r *Registry) resetLocked() {
	for _, g := range r.grants {
		g.timer.Stop()
	}
	r.grants = make(map[string]*grant)
}
