////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package presence tracks who is typing in which conversation and who is
// online. Typing indicators expire on their own if the stop event is lost.
package presence

import (
	"sort"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

// DefaultTypingTimeout is how long a typing indicator lasts without a
// refresh.
const DefaultTypingTimeout = 6 * time.Second

// TypingCallback receives the users typing in a conversation whenever that
// set changes.
type TypingCallback func(conversationID string, userIDs []string)

// Status is a user's last known presence.
type Status struct {
	Online   bool
	LastSeen time.Time
}

type typer struct {
	timer *time.Timer
}

// Tracker holds typing indicators and presence.
type Tracker struct {
	timeout  time.Duration
	typing   map[string]map[string]*typer
	presence map[string]Status
	onTyping TypingCallback
	closed   bool
	mux      sync.Mutex
}

// NewTracker returns a Tracker whose typing indicators expire after timeout.
// A non-positive timeout uses DefaultTypingTimeout.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &Tracker{
		timeout:  timeout,
		typing:   make(map[string]map[string]*typer),
		presence: make(map[string]Status),
	}
}

func (t *Tracker) SetTypingCallback(cb TypingCallback) {
	t.mux.Lock()
	t.onTyping = cb
	t.mux.Unlock()
}

// OnTyping starts, refreshes or stops userID's indicator in a conversation.
func (t *Tracker) OnTyping(conversationID, userID string, typing bool) {
	t.mux.Lock()
	if t.closed {
		t.mux.Unlock()
		return
	}

	users := t.typing[conversationID]
	existing, wasTyping := users[userID]
	if wasTyping {
		existing.timer.Stop()
	}

	switch {
	case typing:
		if users == nil {
			users = make(map[string]*typer)
			t.typing[conversationID] = users
		}
		ty := &typer{}
		ty.timer = time.AfterFunc(t.timeout, func() {
			t.expire(conversationID, userID, ty)
		})
		users[userID] = ty
		if wasTyping {
			// Refresh only; the set did not change.
			t.mux.Unlock()
			return
		}
	case wasTyping:
		t.drop(conversationID, userID)
	default:
		t.mux.Unlock()
		return
	}

	cb, list := t.onTyping, t.listLocked(conversationID)
	t.mux.Unlock()
	if cb != nil {
		cb(conversationID, list)
	}
}

// expire removes an indicator whose timer fired, unless it was replaced.
func (t *Tracker) expire(conversationID, userID string, ty *typer) {
	t.mux.Lock()
	if t.closed || t.typing[conversationID][userID] != ty {
		t.mux.Unlock()
		return
	}
	t.drop(conversationID, userID)
	cb, list := t.onTyping, t.listLocked(conversationID)
	t.mux.Unlock()

	jww.TRACE.Printf("[PRESENCE] typing by %s in %s expired",
		userID, conversationID)
	if cb != nil {
		cb(conversationID, list)
	}
}

func (t *Tracker) drop(conversationID, userID string) {
	users := t.typing[conversationID]
	delete(users, userID)
	if len(users) == 0 {
		delete(t.typing, conversationID)
	}
}

// Typing returns the users currently typing in a conversation, sorted.
func (t *Tracker) Typing(conversationID string) []string {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.listLocked(conversationID)
}

func (t *Tracker) listLocked(conversationID string) []string {
	users := t.typing[conversationID]
	list := make([]string, 0, len(users))
	for id := range users {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

// ClearConversation stops every indicator in a conversation, for example
// after it was removed.
func (t *Tracker) ClearConversation(conversationID string) {
	t.mux.Lock()
	defer t.mux.Unlock()
	for _, ty := range t.typing[conversationID] {
		ty.timer.Stop()
	}
	delete(t.typing, conversationID)
}

// OnPresence records a presence change. Going offline without a last-seen
// time stamps the current time.
func (t *Tracker) OnPresence(userID string, online bool, lastSeen time.Time) {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.closed {
		return
	}
	if !online && lastSeen.IsZero() {
		lastSeen = netTime.Now()
	}
	t.presence[userID] = Status{Online: online, LastSeen: lastSeen}
}

// Online reports whether the user was last seen online.
func (t *Tracker) Online(userID string) bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.presence[userID].Online
}

// Presence returns the user's last known status.
func (t *Tracker) Presence(userID string) (Status, bool) {
	t.mux.Lock()
	defer t.mux.Unlock()
	s, ok := t.presence[userID]
	return s, ok
}

// Reset stops every timer and forgets all state, leaving the tracker usable.
func (t *Tracker) Reset() {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.resetLocked()
}

// Close stops every timer. The tracker ignores events afterwards.
func (t *Tracker) Close() {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.closed = true
	t.resetLocked()
}

func (t *Tracker) resetLocked() {
	for _, users := range t.typing {
		for _, ty := range users {
			ty.timer.Stop()
		}
	}
	t.typing = make(map[string]map[string]*typer)
	t.presence = make(map[string]Status)
}
