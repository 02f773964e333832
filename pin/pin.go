////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package pin applies pin and unpin to the conversation list before the
// backend confirms them, and rolls back to the exact previous state if it
// refuses.
package pin

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/heartline/client/conversation"
)

var (
	// ErrPinLimit is returned, without contacting the backend, when the
	// server-declared maximum is already pinned.
	ErrPinLimit      = errors.New("pinned conversation limit reached")
	ErrNotFound      = errors.New("conversation not in list")
	ErrAlreadyPinned = errors.New("conversation already pinned")
	ErrNotPinned     = errors.New("conversation not pinned")
)

// Pinner performs the authoritative pin change.
type Pinner interface {
	Pin(ctx context.Context, conversationID string) error
	Unpin(ctx context.Context, conversationID string) error
}

// Manager owns the pinned and unpinned collections. Both hold full
// conversation objects so a moved conversation displays unchanged.
type Manager struct {
	api Pinner

	pinned   []conversation.Conversation
	unpinned []conversation.Conversation
	max      int
	mux      sync.RWMutex

	// opMux serialises pin operations so each rollback snapshot is the state
	// its own operation started from.
	opMux sync.Mutex
}

// NewManager returns an empty Manager.
func NewManager(api Pinner) *Manager {
	return &Manager{api: api}
}

// Load replaces both collections and the pin limit, typically after a list
// fetch.
func (m *Manager) Load(pinned, unpinned []conversation.Conversation, max int) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.pinned = conversation.CloneAll(pinned)
	m.unpinned = conversation.CloneAll(unpinned)
	for i := range m.pinned {
		m.pinned[i].Pinned = true
	}
	for i := range m.unpinned {
		m.unpinned[i].Pinned = false
	}
	sortByActivity(m.unpinned)
	m.max = max
}

// Pin moves the conversation to the front of the pinned collection, then asks
// the backend. On failure both collections are restored from snapshots.
func (m *Manager) Pin(ctx context.Context, conversationID string) error {
	m.opMux.Lock()
	defer m.opMux.Unlock()

	m.mux.Lock()
	if len(m.pinned) >= m.max {
		n, max := len(m.pinned), m.max
		m.mux.Unlock()
		return errors.Wrapf(ErrPinLimit, "%d of %d pinned", n, max)
	}
	idx := indexOf(m.unpinned, conversationID)
	if idx < 0 {
		err := ErrNotFound
		if indexOf(m.pinned, conversationID) >= 0 {
			err = ErrAlreadyPinned
		}
		m.mux.Unlock()
		return errors.Wrapf(err, "%s", conversationID)
	}

	prevPinned, prevUnpinned := m.snapshotLocked()
	c := m.unpinned[idx]
	c.Pinned = true
	m.unpinned = append(m.unpinned[:idx:idx], m.unpinned[idx+1:]...)
	m.pinned = append([]conversation.Conversation{c}, m.pinned...)
	m.mux.Unlock()

	if err := m.api.Pin(ctx, conversationID); err != nil {
		jww.WARN.Printf("Pin of %s rejected, rolling back: %+v",
			conversationID, err)
		m.restore(prevPinned, prevUnpinned)
		return errors.WithMessagef(err, "failed to pin %s", conversationID)
	}
	jww.DEBUG.Printf("Pinned %s", conversationID)
	return nil
}

// Unpin moves the conversation back among the unpinned ones by activity,
// then asks the backend. On failure both collections are restored.
func (m *Manager) Unpin(ctx context.Context, conversationID string) error {
	m.opMux.Lock()
	defer m.opMux.Unlock()

	m.mux.Lock()
	idx := indexOf(m.pinned, conversationID)
	if idx < 0 {
		err := ErrNotFound
		if indexOf(m.unpinned, conversationID) >= 0 {
			err = ErrNotPinned
		}
		m.mux.Unlock()
		return errors.Wrapf(err, "%s", conversationID)
	}

	prevPinned, prevUnpinned := m.snapshotLocked()
	c := m.pinned[idx]
	c.Pinned = false
	m.pinned = append(m.pinned[:idx:idx], m.pinned[idx+1:]...)
	m.unpinned = append(m.unpinned[:len(m.unpinned):len(m.unpinned)], c)
	sortByActivity(m.unpinned)
	m.mux.Unlock()

	if err := m.api.Unpin(ctx, conversationID); err != nil {
		jww.WARN.Printf("Unpin of %s rejected, rolling back: %+v",
			conversationID, err)
		m.restore(prevPinned, prevUnpinned)
		return errors.WithMessagef(err, "failed to unpin %s", conversationID)
	}
	jww.DEBUG.Printf("Unpinned %s", conversationID)
	return nil
}

// Update refreshes the displayed copy of a conversation in whichever
// collection holds it. Unknown conversations join the unpinned collection
// unless they arrive already pinned.
func (m *Manager) Update(c conversation.Conversation) {
	m.mux.Lock()
	defer m.mux.Unlock()

	c = c.Clone()
	if idx := indexOf(m.pinned, c.ID); idx >= 0 {
		c.Pinned = true
		m.pinned[idx] = c
		return
	}
	if idx := indexOf(m.unpinned, c.ID); idx >= 0 {
		c.Pinned = false
		m.unpinned[idx] = c
	} else if c.Pinned && len(m.pinned) < m.max {
		m.pinned = append(m.pinned, c)
		return
	} else {
		c.Pinned = false
		m.unpinned = append(m.unpinned, c)
	}
	sortByActivity(m.unpinned)
}

// Remove drops a conversation from both collections.
func (m *Manager) Remove(conversationID string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if idx := indexOf(m.pinned, conversationID); idx >= 0 {
		m.pinned = append(m.pinned[:idx:idx], m.pinned[idx+1:]...)
	}
	if idx := indexOf(m.unpinned, conversationID); idx >= 0 {
		m.unpinned = append(m.unpinned[:idx:idx], m.unpinned[idx+1:]...)
	}
}

// Pinned returns a copy of the pinned collection.
func (m *Manager) Pinned() []conversation.Conversation {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return conversation.CloneAll(m.pinned)
}

// Unpinned returns a copy of the unpinned collection.
func (m *Manager) Unpinned() []conversation.Conversation {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return conversation.CloneAll(m.unpinned)
}

// Max returns the server-declared pin limit.
func (m *Manager) Max() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.max
}

// CanPin reports whether another conversation may be pinned.
func (m *Manager) CanPin() bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.pinned) < m.max
}

func (m *Manager) snapshotLocked() (pinned, unpinned []conversation.Conversation) {
	return conversation.CloneAll(m.pinned), conversation.CloneAll(m.unpinned)
}

func (m *Manager) restore(pinned, unpinned []conversation.Conversation) {
	m.mux.Lock()
	m.pinned, m.unpinned = pinned, unpinned
	m.mux.Unlock()
}

func indexOf(convs []conversation.Conversation, id string) int {
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}

func sortByActivity(convs []conversation.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].ActivityTime().After(convs[j].ActivityTime())
	})
}
