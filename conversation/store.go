////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package conversation holds the client's view of conversations and their
// message threads. Three independent streams feed it: bulk fetches from the
// REST API, optimistic local sends, and push events. They can interleave in
// any order; the Store keeps the view consistent regardless.
package conversation

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

var (
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrUnknownMessage      = errors.New("unknown message")
	ErrNotInvitation       = errors.New("message is not an invitation")
	ErrInvitationResolved  = errors.New("invitation already resolved")
)

// ChangeCallback is called after a mutation, outside the store lock, with
// the ID of the conversation that changed. An empty ID means the whole list.
type ChangeCallback func(conversationID string)

type entry struct {
	conv Conversation

	// seq is the first-insertion order and breaks activity-time ties.
	seq uint64

	// tick is the store clock at the last local mutation.
	tick uint64
}

type record struct {
	msg  Message
	tick uint64
}

// pendingSend remembers what an optimistic send displaced so a failure can
// put it back.
type pendingSend struct {
	conversationID string
	prevLast       *Message
}

// Store is the in-memory conversation/message map the UI renders from.
// Every exported method is one critical section.
type Store struct {
	myID string
	now  func() time.Time

	convs   map[string]*entry
	order   []string
	threads map[string][]*record
	pending map[string]pendingSend

	clock   uint64
	nextSeq uint64
	tempSeq uint64

	changed ChangeCallback
	mux     sync.RWMutex
}

// NewStore returns an empty store for the given local user. A nil clock uses
// network time.
func NewStore(myID string, now func() time.Time) *Store {
	if now == nil {
		now = netTime.Now
	}
	return &Store{
		myID:    myID,
		now:     now,
		convs:   make(map[string]*entry),
		threads: make(map[string][]*record),
		pending: make(map[string]pendingSend),
	}
}

// MyID returns the local user the store was created for.
func (s *Store) MyID() string {
	return s.myID
}

// SetChangeCallback replaces the change callback.
func (s *Store) SetChangeCallback(cb ChangeCallback) {
	s.mux.Lock()
	s.changed = cb
	s.mux.Unlock()
}

func (s *Store) notify(conversationID string) {
	s.mux.RLock()
	cb := s.changed
	s.mux.RUnlock()
	if cb != nil {
		cb(conversationID)
	}
}

// Mark returns the current store clock. Pass it to Replace or
// IngestMessages when the matching fetch resolves so that anything that
// arrived in between survives.
func (s *Store) Mark() uint64 {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.clock
}

func (s *Store) tickLocked() uint64 {
	s.clock++
	return s.clock
}

////////////////////////////////////////////////////////////////////////////////
// Bulk fetches                                                               //
////////////////////////////////////////////////////////////////////////////////

// Ingest merges a fetched conversation list into the store. Conversations
// missing from the list are kept.
func (s *Store) Ingest(list []Conversation) {
	s.mux.Lock()
	for i := range list {
		s.mergeLocked(list[i])
	}
	s.resortLocked()
	s.mux.Unlock()
	s.notify("")
}

// Replace merges a fetched conversation list and drops every conversation
// absent from it, except those touched locally after since.
func (s *Store) Replace(list []Conversation, since uint64) {
	s.mux.Lock()
	seen := make(map[string]struct{}, len(list))
	for i := range list {
		s.mergeLocked(list[i])
		seen[list[i].ID] = struct{}{}
	}
	for id, e := range s.convs {
		if _, ok := seen[id]; ok || e.tick > since {
			continue
		}
		jww.DEBUG.Printf("Dropping conversation %s absent from snapshot", id)
		s.removeLocked(id)
	}
	s.resortLocked()
	s.mux.Unlock()
	s.notify("")
}

// mergeLocked folds a server copy of a conversation into the local one. The
// last-message snapshot keeps whichever side is newer, and with it that
// side's unread count.
func (s *Store) mergeLocked(in Conversation) *entry {
	in = in.Clone()
	if in.LastMessage != nil {
		in.LastMessage.Pending = false
	}

	e, ok := s.convs[in.ID]
	if !ok {
		e = &entry{conv: in, seq: s.nextSeq}
		s.nextSeq++
		s.convs[in.ID] = e
		s.order = append(s.order, in.ID)
		if newest := s.newestLocked(in.ID); newest != nil &&
			newest.newerThan(e.conv.LastMessage) {
			e.conv.LastMessage = newest
		}
		return e
	}

	local := e.conv
	if local.LastMessage != nil && (in.LastMessage == nil ||
		!in.LastMessage.newerThan(local.LastMessage)) {
		if in.LastMessage == nil || in.LastMessage.ID != local.LastMessage.ID {
			in.UnreadCount = local.UnreadCount
		}
		in.LastMessage = local.LastMessage
	}
	if in.UpdatedAt.Before(local.UpdatedAt) {
		in.UpdatedAt = local.UpdatedAt
	}
	e.conv = in
	return e
}

// IngestMessages merges a fetched page of a thread. Within the time window
// the page covers, the page is authoritative except for pending sends and
// entries stored after since. Entries outside the window are untouched.
func (s *Store) IngestMessages(conversationID string, page []Message,
	since uint64) error {
	s.mux.Lock()
	e, ok := s.convs[conversationID]
	if !ok {
		s.mux.Unlock()
		return errors.Wrapf(ErrUnknownConversation, "%s", conversationID)
	}
	if len(page) == 0 {
		s.mux.Unlock()
		return nil
	}

	tick := s.tickLocked()
	byID := make(map[string]int, len(page))
	refs := make(map[string]Message)
	merged := make([]*record, 0, len(page))
	lo, hi := page[0].CreatedAt, page[0].CreatedAt
	for i := range page {
		m := page[i].Clone()
		m.Pending = false
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		if m.CreatedAt.Before(lo) {
			lo = m.CreatedAt
		}
		if m.CreatedAt.After(hi) {
			hi = m.CreatedAt
		}
		if m.ClientRef != "" {
			refs[m.ClientRef] = m
		}
		if idx, dup := byID[m.ID]; dup {
			merged[idx].msg = m
			continue
		}
		byID[m.ID] = len(merged)
		merged = append(merged, &record{msg: m, tick: tick})
	}

	for _, r := range s.threads[conversationID] {
		if _, inPage := byID[r.msg.ID]; inPage {
			continue
		}
		if server, confirmed := refs[r.msg.ID]; confirmed && r.msg.Pending {
			delete(s.pending, r.msg.ID)
			s.relinkLocked(r.msg.ID, &server)
			continue
		}
		outside := r.msg.CreatedAt.Before(lo) || r.msg.CreatedAt.After(hi)
		if outside || r.msg.Pending || r.tick > since {
			merged = append(merged, r)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].msg.CreatedAt.Before(merged[j].msg.CreatedAt)
	})
	s.threads[conversationID] = merged

	if newest := s.newestLocked(conversationID); newest != nil {
		last := e.conv.LastMessage
		if last == nil || newest.newerThan(last) || s.isPendingRemoved(last) {
			e.conv.LastMessage = newest
		}
	}
	s.resortLocked()
	s.mux.Unlock()
	s.notify(conversationID)
	return nil
}

// isPendingRemoved is true when the summary points at an optimistic entry
// that a page just confirmed.
func (s *Store) isPendingRemoved(last *Message) bool {
	if !last.Pending {
		return false
	}
	_, stillPending := s.pending[last.ID]
	return !stillPending
}

////////////////////////////////////////////////////////////////////////////////
// Optimistic sends                                                           //
////////////////////////////////////////////////////////////////////////////////

// AppendOptimistic adds a pending message from the local user with a
// temporary ID. It is ordered by timestamp like any confirmed message and
// becomes the conversation's last message.
func (s *Store) AppendOptimistic(conversationID string, content Content) (
	Message, error) {
	s.mux.Lock()
	e, ok := s.convs[conversationID]
	if !ok {
		s.mux.Unlock()
		return Message{}, errors.Wrapf(ErrUnknownConversation, "%s",
			conversationID)
	}

	s.tempSeq++
	tempID := TempIDPrefix + strconv.FormatUint(s.tempSeq, 10)
	ts := s.now()
	// Never sort before what is already on screen
	if newest := s.newestLocked(conversationID); newest != nil &&
		newest.CreatedAt.After(ts) {
		ts = newest.CreatedAt
	}
	if e.conv.LastMessage != nil && e.conv.LastMessage.CreatedAt.After(ts) {
		ts = e.conv.LastMessage.CreatedAt
	}

	msg := Message{
		ID:             tempID,
		ConversationID: conversationID,
		SenderID:       s.myID,
		Content:        content,
		ClientRef:      tempID,
		CreatedAt:      ts,
		Pending:        true,
	}

	tick := s.tickLocked()
	s.insertLocked(conversationID, &record{msg: msg, tick: tick})

	var prev *Message
	if e.conv.LastMessage != nil {
		p := e.conv.LastMessage.Clone()
		prev = &p
	}
	s.pending[tempID] = pendingSend{conversationID: conversationID, prevLast: prev}

	last := msg.Clone()
	e.conv.LastMessage = &last
	e.tick = tick
	s.resortLocked()
	s.mux.Unlock()

	s.notify(conversationID)
	return msg.Clone(), nil
}

// Reconcile swaps the optimistic entry for the server's copy. If the
// server's ID is already present (its echo arrived first) the optimistic
// entry is simply dropped. A missing temporary entry is a no-op and returns
// false.
func (s *Store) Reconcile(conversationID, tempID string, server Message) bool {
	s.mux.Lock()
	e, ok := s.convs[conversationID]
	idx := s.findLocked(conversationID, tempID)
	if !ok || idx < 0 {
		delete(s.pending, tempID)
		s.mux.Unlock()
		jww.DEBUG.Printf("Reconcile of %s in %s skipped: entry gone",
			tempID, conversationID)
		return false
	}

	server = server.Clone()
	server.Pending = false
	if server.ConversationID == "" {
		server.ConversationID = conversationID
	}
	if server.ClientRef == "" {
		server.ClientRef = tempID
	}

	tick := s.tickLocked()
	s.removeAtLocked(conversationID, idx)
	stored := server
	if existing := s.findLocked(conversationID, server.ID); existing >= 0 {
		stored = s.threads[conversationID][existing].msg
	} else {
		s.insertLocked(conversationID, &record{msg: server, tick: tick})
	}
	delete(s.pending, tempID)
	s.relinkLocked(tempID, &stored)

	if last := e.conv.LastMessage; last == nil || last.ID == tempID ||
		stored.newerThan(last) {
		l := stored.Clone()
		e.conv.LastMessage = &l
	}
	e.tick = tick
	s.resortLocked()
	s.mux.Unlock()

	s.notify(conversationID)
	return true
}

// Fail removes an optimistic entry after its send failed and restores the
// last-message snapshot it displaced. Returns the removed entry.
func (s *Store) Fail(conversationID, tempID string) (Message, bool) {
	s.mux.Lock()
	idx := s.findLocked(conversationID, tempID)
	if idx < 0 {
		delete(s.pending, tempID)
		s.mux.Unlock()
		return Message{}, false
	}

	removed := s.removeAtLocked(conversationID, idx)
	p := s.pending[tempID]
	delete(s.pending, tempID)
	s.relinkLocked(tempID, p.prevLast)

	if e, ok := s.convs[conversationID]; ok {
		if e.conv.LastMessage != nil && e.conv.LastMessage.ID == tempID {
			restored := p.prevLast
			if newest := s.newestLocked(conversationID); newest != nil &&
				newest.newerThan(restored) {
				restored = newest
			}
			e.conv.LastMessage = restored
		}
		e.tick = s.tickLocked()
		s.resortLocked()
	}
	s.mux.Unlock()

	s.notify(conversationID)
	return removed, true
}

////////////////////////////////////////////////////////////////////////////////
// Push events                                                                //
////////////////////////////////////////////////////////////////////////////////

// OnPush stores a pushed message unless its ID is already present. An echo
// of the local user's own send that carries the temporary ID replaces the
// optimistic entry in place. The owning conversation's summary is updated
// and its unread counter incremented unless the local user sent it. Returns
// true if the message was new.
func (s *Store) OnPush(msg Message) bool {
	msg = msg.Clone()
	msg.Pending = false
	conversationID := msg.ConversationID
	if conversationID == "" || msg.ID == "" {
		jww.WARN.Printf("Dropping pushed message without IDs: %q in %q",
			msg.ID, conversationID)
		return false
	}

	s.mux.Lock()
	e, ok := s.convs[conversationID]
	if !ok {
		jww.DEBUG.Printf("Push for unknown conversation %s, adding "+
			"placeholder", conversationID)
		e = s.mergeLocked(Conversation{
			ID:        conversationID,
			CreatedAt: msg.CreatedAt,
		})
	}

	if idx := s.findLocked(conversationID, msg.ID); idx >= 0 {
		r := s.threads[conversationID][idx]
		r.msg.Delivered = r.msg.Delivered || msg.Delivered
		r.msg.Read = r.msg.Read || msg.Read
		s.mux.Unlock()
		jww.TRACE.Printf("Duplicate push of %s ignored", msg.ID)
		return false
	}

	tick := s.tickLocked()
	echoOf := ""
	if msg.ClientRef != "" && msg.SenderID == s.myID {
		if idx := s.findLocked(conversationID, msg.ClientRef); idx >= 0 &&
			s.threads[conversationID][idx].msg.Pending {
			s.removeAtLocked(conversationID, idx)
			delete(s.pending, msg.ClientRef)
			s.relinkLocked(msg.ClientRef, &msg)
			echoOf = msg.ClientRef
		}
	}
	s.insertLocked(conversationID, &record{msg: msg, tick: tick})

	if last := e.conv.LastMessage; last == nil ||
		(echoOf != "" && last.ID == echoOf) ||
		!last.CreatedAt.After(msg.CreatedAt) {
		l := msg.Clone()
		e.conv.LastMessage = &l
	}
	if msg.SenderID != s.myID {
		e.conv.UnreadCount++
	}
	e.tick = tick
	s.resortLocked()
	s.mux.Unlock()

	s.notify(conversationID)
	return true
}

// Upsert applies a pushed resource update for a whole conversation.
func (s *Store) Upsert(c Conversation) {
	s.mux.Lock()
	e := s.mergeLocked(c)
	e.tick = s.tickLocked()
	s.resortLocked()
	s.mux.Unlock()
	s.notify(c.ID)
}

// ApplyMembership replaces a conversation's member list. If the local user
// is among those who left, the conversation is removed and true returned.
func (s *Store) ApplyMembership(conversationID string, members []Member,
	left []string) bool {
	s.mux.Lock()
	e, ok := s.convs[conversationID]
	if !ok {
		s.mux.Unlock()
		return false
	}

	for _, id := range left {
		if id == s.myID {
			s.removeLocked(conversationID)
			s.resortLocked()
			s.mux.Unlock()
			s.notify(conversationID)
			return true
		}
	}

	if members != nil {
		e.conv.Members = append([]Member(nil), members...)
	}
	e.tick = s.tickLocked()
	s.mux.Unlock()
	s.notify(conversationID)
	return false
}

// ApplyReadReceipt records that reader has read up to and including the
// given message. A receipt from the local user clears the unread counter;
// one from anyone else marks the local user's messages as read.
func (s *Store) ApplyReadReceipt(conversationID, readerID, upToID string) {
	if readerID == s.myID {
		s.MarkRead(conversationID)
		return
	}

	s.mux.Lock()
	idx := s.findLocked(conversationID, upToID)
	if idx < 0 {
		s.mux.Unlock()
		return
	}
	thread := s.threads[conversationID]
	cutoff := thread[idx].msg.CreatedAt
	for _, r := range thread {
		if r.msg.SenderID == s.myID && !r.msg.CreatedAt.After(cutoff) {
			r.msg.Read = true
		}
	}
	if e, ok := s.convs[conversationID]; ok && e.conv.LastMessage != nil &&
		e.conv.LastMessage.SenderID == s.myID &&
		!e.conv.LastMessage.CreatedAt.After(cutoff) {
		e.conv.LastMessage.Read = true
	}
	s.mux.Unlock()
	s.notify(conversationID)
}

////////////////////////////////////////////////////////////////////////////////
// Local mutations                                                            //
////////////////////////////////////////////////////////////////////////////////

// Remove drops a conversation and its thread (leave, delete, unmatch).
func (s *Store) Remove(conversationID string) bool {
	s.mux.Lock()
	_, ok := s.convs[conversationID]
	if ok {
		s.removeLocked(conversationID)
		s.resortLocked()
	}
	s.mux.Unlock()
	if ok {
		s.notify(conversationID)
	}
	return ok
}

// MarkRead clears the unread counter.
func (s *Store) MarkRead(conversationID string) bool {
	s.mux.Lock()
	e, ok := s.convs[conversationID]
	if ok {
		e.conv.UnreadCount = 0
		e.tick = s.tickLocked()
	}
	s.mux.Unlock()
	if ok {
		s.notify(conversationID)
	}
	return ok
}

// SetPinned sets the conversation's pin flag.
func (s *Store) SetPinned(conversationID string, pinned bool) bool {
	s.mux.Lock()
	e, ok := s.convs[conversationID]
	if ok {
		e.conv.Pinned = pinned
		e.tick = s.tickLocked()
	}
	s.mux.Unlock()
	if ok {
		s.notify(conversationID)
	}
	return ok
}

// SetInvitationStatus resolves an invitation message. Resolved invitations
// cannot change again.
func (s *Store) SetInvitationStatus(conversationID, messageID string,
	status InvitationStatus) error {
	s.mux.Lock()
	idx := s.findLocked(conversationID, messageID)
	if idx < 0 {
		s.mux.Unlock()
		return errors.Wrapf(ErrUnknownMessage, "%s in %s", messageID,
			conversationID)
	}
	r := s.threads[conversationID][idx]
	inv, ok := r.msg.Content.(InvitationContent)
	if !ok {
		s.mux.Unlock()
		return errors.Wrapf(ErrNotInvitation, "%s is %s", messageID,
			r.msg.Type())
	}
	if inv.Status.Resolved() {
		s.mux.Unlock()
		return errors.Wrapf(ErrInvitationResolved, "%s is %s", messageID,
			inv.Status)
	}

	inv.Status = status
	r.msg.Content = inv
	if e := s.convs[conversationID]; e != nil && e.conv.LastMessage != nil &&
		e.conv.LastMessage.ID == messageID {
		e.conv.LastMessage.Content = inv
	}
	s.tickLocked()
	s.mux.Unlock()
	s.notify(conversationID)
	return nil
}

// ApplyReaction adds or removes a user's reaction on a message.
func (s *Store) ApplyReaction(conversationID, messageID, userID,
	emoji string, add bool) error {
	s.mux.Lock()
	idx := s.findLocked(conversationID, messageID)
	if idx < 0 {
		s.mux.Unlock()
		return errors.Wrapf(ErrUnknownMessage, "%s in %s", messageID,
			conversationID)
	}
	changed := s.threads[conversationID][idx].msg.toggleReaction(
		emoji, userID, add)
	if changed {
		s.tickLocked()
	}
	s.mux.Unlock()
	if changed {
		s.notify(conversationID)
	}
	return nil
}

// Clear drops everything, as on logout.
func (s *Store) Clear() {
	s.mux.Lock()
	s.convs = make(map[string]*entry)
	s.threads = make(map[string][]*record)
	s.pending = make(map[string]pendingSend)
	s.order = nil
	s.tickLocked()
	s.mux.Unlock()
	s.notify("")
}

////////////////////////////////////////////////////////////////////////////////
// Ordering                                                                   //
////////////////////////////////////////////////////////////////////////////////

// Resort orders conversations by activity time, newest first, with ties
// broken by first-insertion order. Every mutation that can move an ordering
// key already calls it; calling it again changes nothing.
func (s *Store) Resort() {
	s.mux.Lock()
	s.resortLocked()
	s.mux.Unlock()
}

func (s *Store) resortLocked() {
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.convs[s.order[i]], s.convs[s.order[j]]
		at, bt := a.conv.ActivityTime(), b.conv.ActivityTime()
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.seq < b.seq
	})
}

////////////////////////////////////////////////////////////////////////////////
// Readers                                                                    //
////////////////////////////////////////////////////////////////////////////////

// Conversations returns a copy of the ordered conversation list.
func (s *Store) Conversations() []Conversation {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]Conversation, len(s.order))
	for i, id := range s.order {
		out[i] = s.convs[id].conv.Clone()
	}
	return out
}

// Conversation returns a copy of one conversation.
func (s *Store) Conversation(conversationID string) (Conversation, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	e, ok := s.convs[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return e.conv.Clone(), true
}

// Messages returns a copy of the thread in display order.
func (s *Store) Messages(conversationID string) []Message {
	s.mux.RLock()
	defer s.mux.RUnlock()
	thread := s.threads[conversationID]
	out := make([]Message, len(thread))
	for i, r := range thread {
		out[i] = r.msg.Clone()
	}
	return out
}

// TotalUnread sums the unread counters of every conversation.
func (s *Store) TotalUnread() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	total := 0
	for _, e := range s.convs {
		total += e.conv.UnreadCount
	}
	return total
}

////////////////////////////////////////////////////////////////////////////////
// Helpers, callers hold the lock                                             //
////////////////////////////////////////////////////////////////////////////////

func (s *Store) findLocked(conversationID, messageID string) int {
	for i, r := range s.threads[conversationID] {
		if r.msg.ID == messageID {
			return i
		}
	}
	return -1
}

// insertLocked places the record after every message with the same or an
// earlier timestamp.
func (s *Store) insertLocked(conversationID string, r *record) {
	thread := s.threads[conversationID]
	idx := sort.Search(len(thread), func(i int) bool {
		return thread[i].msg.CreatedAt.After(r.msg.CreatedAt)
	})
	thread = append(thread, nil)
	copy(thread[idx+1:], thread[idx:])
	thread[idx] = r
	s.threads[conversationID] = thread
}

func (s *Store) removeAtLocked(conversationID string, idx int) Message {
	thread := s.threads[conversationID]
	removed := thread[idx].msg
	copy(thread[idx:], thread[idx+1:])
	thread[len(thread)-1] = nil
	s.threads[conversationID] = thread[:len(thread)-1]
	return removed
}

// relinkLocked repoints every pending send that displaced goneID at its
// replacement, so a later failure never restores an entry that is gone.
func (s *Store) relinkLocked(goneID string, replacement *Message) {
	for tempID, p := range s.pending {
		if p.prevLast == nil || p.prevLast.ID != goneID {
			continue
		}
		p.prevLast = nil
		if replacement != nil {
			c := replacement.Clone()
			p.prevLast = &c
		}
		s.pending[tempID] = p
	}
}

func (s *Store) removeLocked(conversationID string) {
	delete(s.convs, conversationID)
	delete(s.threads, conversationID)
	for tempID, p := range s.pending {
		if p.conversationID == conversationID {
			delete(s.pending, tempID)
		}
	}
	for i, id := range s.order {
		if id == conversationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// newestLocked returns a copy of the newest message in the thread.
func (s *Store) newestLocked(conversationID string) *Message {
	thread := s.threads[conversationID]
	if len(thread) == 0 {
		return nil
	}
	m := thread[len(thread)-1].msg.Clone()
	return &m
}
