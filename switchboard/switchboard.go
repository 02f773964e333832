////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package switchboard fans view-model changes out to the listeners that
// registered for a conversation, a kind of change, or both.
package switchboard

import (
	"strconv"
	"sync"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"
)

// AnyConversation registers a listener for every conversation.
const AnyConversation = ""

// Kind is what changed.
type Kind uint8

const (
	AnyKind Kind = iota
	// ConversationChanged covers the list-level summary and ordering.
	ConversationChanged
	MessagesChanged
	TypingChanged
	ConversationRemoved
	WalletChanged
	SessionChanged
	UnlockChanged
)

func (k Kind) String() string {
	switch k {
	case AnyKind:
		return "any"
	case ConversationChanged:
		return "conversation"
	case MessagesChanged:
		return "messages"
	case TypingChanged:
		return "typing"
	case ConversationRemoved:
		return "removed"
	case WalletChanged:
		return "wallet"
	case SessionChanged:
		return "session"
	case UnlockChanged:
		return "unlock"
	default:
		return "INVALID KIND: " + strconv.Itoa(int(k))
	}
}

// Change is one view-model change. ConversationID is empty for changes that
// are not about a conversation.
type Change struct {
	Kind           Kind
	ConversationID string
}

func (c Change) String() string {
	if c.ConversationID == "" {
		return c.Kind.String()
	}
	return c.Kind.String() + "(" + c.ConversationID + ")"
}

type Switchboard struct {
	conversation *byConversation
	kind         *byKind

	mux sync.RWMutex
}

func New() *Switchboard {
	return &Switchboard{
		conversation: newByConversation(),
		kind:         newByKind(),
	}
}

// RegisterListener registers l for changes of kind k in a conversation. Use
// AnyConversation and AnyKind as wildcards. If a change matches several
// listeners, all of them hear it.
func (sw *Switchboard) RegisterListener(conversationID string, k Kind,
	l Listener) ListenerID {
	if l == nil {
		jww.FATAL.Panicf("cannot register nil listener")
	}

	lid := ListenerID{conversationID: conversationID, kind: k, listener: l}
	sw.mux.Lock()
	sw.conversation.Add(lid)
	sw.kind.Add(lid)
	sw.mux.Unlock()
	return lid
}

// RegisterFunc registers a function listener. name is used for debug
// printing and not checked for uniqueness.
func (sw *Switchboard) RegisterFunc(name, conversationID string, k Kind,
	l ListenerFunc) ListenerID {
	if l == nil {
		jww.FATAL.Panicf("cannot register function listener %q with nil "+
			"func", name)
	}
	return sw.RegisterListener(conversationID, k, newFuncListener(l, name))
}

// RegisterChannel registers a channel listener. Changes are dropped rather
// than block when the channel is full.
func (sw *Switchboard) RegisterChannel(name, conversationID string, k Kind,
	c chan Change) ListenerID {
	if c == nil {
		jww.FATAL.Panicf("cannot register channel listener %q with nil "+
			"channel", name)
	}
	return sw.RegisterListener(conversationID, k, newChanListener(c, name))
}

// Unregister removes the listener.
func (sw *Switchboard) Unregister(lid ListenerID) {
	sw.mux.Lock()
	sw.conversation.Remove(lid)
	sw.kind.Remove(lid)
	sw.mux.Unlock()
}

// UnregisterConversation removes every listener registered for a specific
// conversation, typically after it was removed.
func (sw *Switchboard) UnregisterConversation(conversationID string) {
	sw.mux.Lock()
	defer sw.mux.Unlock()
	for _, lid := range sw.conversation.RemoveConversation(conversationID) {
		sw.kind.Remove(lid)
	}
}

// Speak delivers c to every matching listener, in the caller's goroutine and
// outside the switchboard's lock.
func (sw *Switchboard) Speak(c Change) {
	sw.mux.RLock()
	matches := sw.matchListeners(c)
	var listeners []Listener
	matches.Do(func(i interface{}) {
		listeners = append(listeners, i.(ListenerID).listener)
	})
	sw.mux.RUnlock()

	if len(listeners) == 0 {
		jww.TRACE.Printf("[SWITCHBOARD] %s had no listeners", c)
		return
	}
	for _, l := range listeners {
		l.Hear(c)
	}
}

// matchListeners finds all listeners matching the change's conversation and
// kind, or registered as generic for either.
func (sw *Switchboard) matchListeners(c Change) *set.Set {
	return sw.conversation.Get(c.ConversationID).Intersection(
		sw.kind.Get(c.Kind))
}
