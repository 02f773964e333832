////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package switchboard

import (
	"github.com/golang-collections/collections/set"
)

// byConversation indexes listeners by conversation. AnyConversation maps to
// the generic set heard by every conversation.
type byConversation struct {
	list    map[string]*set.Set
	generic *set.Set
}

func newByConversation() *byConversation {
	bc := &byConversation{
		list:    make(map[string]*set.Set),
		generic: set.New(),
	}
	bc.list[AnyConversation] = bc.generic
	return bc
}

// Get returns the listeners of a conversation unioned with the generic ones.
func (bc *byConversation) Get(conversationID string) *set.Set {
	lookup, ok := bc.list[conversationID]
	if !ok || conversationID == AnyConversation {
		return bc.generic
	}
	return lookup.Union(bc.generic)
}

func (bc *byConversation) Add(lid ListenerID) {
	s, ok := bc.list[lid.conversationID]
	if !ok {
		bc.list[lid.conversationID] = set.New(lid)
		return
	}
	s.Insert(lid)
}

func (bc *byConversation) Remove(lid ListenerID) {
	s, ok := bc.list[lid.conversationID]
	if !ok {
		return
	}
	s.Remove(lid)
	if s.Len() == 0 && lid.conversationID != AnyConversation {
		delete(bc.list, lid.conversationID)
	}
}

// RemoveConversation drops every listener of a conversation.
func (bc *byConversation) RemoveConversation(conversationID string) []ListenerID {
	s, ok := bc.list[conversationID]
	if !ok || conversationID == AnyConversation {
		return nil
	}
	var removed []ListenerID
	s.Do(func(i interface{}) {
		removed = append(removed, i.(ListenerID))
	})
	delete(bc.list, conversationID)
	return removed
}

// byKind indexes listeners by change kind. AnyKind maps to the generic set.
type byKind struct {
	list    map[Kind]*set.Set
	generic *set.Set
}

func newByKind() *byKind {
	bk := &byKind{
		list:    make(map[Kind]*set.Set),
		generic: set.New(),
	}
	bk.list[AnyKind] = bk.generic
	return bk
}

func (bk *byKind) Get(k Kind) *set.Set {
	lookup, ok := bk.list[k]
	if !ok || k == AnyKind {
		return bk.generic
	}
	return lookup.Union(bk.generic)
}

func (bk *byKind) Add(lid ListenerID) {
	s, ok := bk.list[lid.kind]
	if !ok {
		bk.list[lid.kind] = set.New(lid)
		return
	}
	s.Insert(lid)
}

func (bk *byKind) Remove(lid ListenerID) {
	s, ok := bk.list[lid.kind]
	if !ok {
		return
	}
	s.Remove(lid)
	if s.Len() == 0 && lid.kind != AnyKind {
		delete(bk.list, lid.kind)
	}
}
