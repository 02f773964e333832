////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"bytes"
	"context"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/push"
	"gitlab.com/heartline/client/stoppable"
)

// ErrPushRunning is returned by StartPush while a push channel is up.
var ErrPushRunning = errors.New("push channel already running")

// StartPush connects the push channel with the session's token. The channel
// does not reconnect on its own; a drop is reported as a push event and
// StartPush may be called again. The handshake runs without holding the
// messenger lock.
func (m *Messenger) StartPush(ctx context.Context) (stoppable.Stoppable,
	error) {
	token, err := m.sessions.Token()
	if err != nil {
		return nil, err
	}
	if token == "" || !m.LoggedIn() {
		return nil, ErrLoggedOut
	}
	if m.pushRunning() {
		return nil, ErrPushRunning
	}

	conn := &pushConn{Messenger: m}
	pc, err := push.Dial(ctx, m.params.Push, token, conn)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to start push channel")
	}
	conn.client = pc

	m.mux.Lock()
	if m.pushStop != nil && !m.pushStop.IsStopped() {
		m.mux.Unlock()
		if cerr := pc.Close(); cerr != nil {
			jww.WARN.Printf("Failed to close redundant push client: %+v",
				cerr)
		}
		return nil, ErrPushRunning
	}
	// Listen only spawns goroutines; their handler calls wait for the unlock
	stop, err := pc.Listen()
	if err != nil {
		m.mux.Unlock()
		return nil, err
	}
	m.pushClient, m.pushStop = pc, stop
	m.mux.Unlock()

	jww.INFO.Printf("Push channel started")
	return stop, nil
}

func (m *Messenger) pushRunning() bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.pushStop != nil && !m.pushStop.IsStopped()
}

func (m *Messenger) stopPush() {
	m.mux.Lock()
	stop := m.pushStop
	m.pushClient, m.pushStop = nil, nil
	m.mux.Unlock()
	if stop == nil || stop.IsStopped() || stop.IsStopping() {
		return
	}
	if err := stop.Close(); err != nil {
		jww.WARN.Printf("Failed to stop push channel: %+v", err)
	}
}

// pushConn is the handler of one push connection. It forwards events to
// the messenger and tells it which connection dropped.
type pushConn struct {
	*Messenger
	client *push.Client
}

func (pc *pushConn) OnDisconnect(err error) {
	pc.pushDropped(pc.client, err)
}

////////////////////////////////////////////////////////////////////////////////
// push.Handler                                                               //
////////////////////////////////////////////////////////////////////////////////

// OnMessageCreated stores a pushed message. Duplicates and echoes of our own
// sends are folded in by the store. A message from someone ends their typing
// indicator.
func (m *Messenger) OnMessageCreated(e push.MessageCreated) {
	msg := e.Message
	if !m.conversations().OnPush(msg) {
		return
	}
	if msg.SenderID != m.MyID() {
		m.presence.OnTyping(msg.ConversationID, msg.SenderID, false)
	}
	m.messagesChanged(msg.ConversationID)
}

// OnMembershipChanged updates a group's members; if we are among those who
// left, the conversation goes.
func (m *Messenger) OnMembershipChanged(e push.MembershipChanged) {
	if m.conversations().ApplyMembership(e.ConversationID, e.Members, e.Left) {
		jww.INFO.Printf("Removed from %s", e.ConversationID)
	}
}

func (m *Messenger) OnTyping(e push.Typing) {
	if e.UserID == m.MyID() {
		return
	}
	m.presence.OnTyping(e.ConversationID, e.UserID, e.Typing)
}

func (m *Messenger) OnPresence(e push.Presence) {
	m.presence.OnPresence(e.UserID, e.Online, e.LastSeen)
}

// OnResourceUpdate applies a full conversation or a patch against our copy.
// Patches for unknown conversations are dropped.
func (m *Messenger) OnResourceUpdate(e push.ResourceUpdate) {
	store := m.conversations()
	if e.Conversation != nil {
		store.Upsert(*e.Conversation)
		return
	}
	if len(e.Patch) == 0 {
		jww.WARN.Printf("Empty resource update for %s", e.ConversationID)
		return
	}
	cur, ok := store.Conversation(e.ConversationID)
	if !ok {
		jww.DEBUG.Printf("Patch for unknown conversation %s dropped",
			e.ConversationID)
		return
	}
	patched, err := patchConversation(cur, e.Patch)
	if err != nil {
		jww.WARN.Printf("Bad patch for %s: %+v", e.ConversationID, err)
		return
	}
	store.Upsert(patched)
}

func patchConversation(cur conversation.Conversation,
	patch json.RawMessage) (conversation.Conversation, error) {
	doc, err := json.Marshal(cur)
	if err != nil {
		return conversation.Conversation{}, errors.Wrap(err,
			"failed to encode conversation")
	}
	doc, err = applyPatch(doc, patch)
	if err != nil {
		return conversation.Conversation{}, errors.Wrap(err,
			"failed to apply patch")
	}
	var out conversation.Conversation
	if err = json.Unmarshal(doc, &out); err != nil {
		return conversation.Conversation{}, errors.Wrap(err,
			"failed to decode patched conversation")
	}
	out.ID = cur.ID
	return out, nil
}

// applyPatch takes either RFC 6902 operations or an RFC 7386 merge patch.
func applyPatch(doc, patch []byte) ([]byte, error) {
	patch = bytes.TrimSpace(patch)
	if len(patch) > 0 && patch[0] == '[' {
		ops, err := jsonpatch.DecodePatch(patch)
		if err != nil {
			return nil, err
		}
		return ops.Apply(doc)
	}
	return jsonpatch.MergePatch(doc, patch)
}

func (m *Messenger) OnConversationRemoved(e push.ConversationRemoved) {
	m.conversations().Remove(e.ConversationID)
}

func (m *Messenger) OnMessageRead(e push.MessageRead) {
	m.conversations().ApplyReadReceipt(e.ConversationID, e.ReaderID, e.UpToID)
	m.messagesChanged(e.ConversationID)
}

// OnDisconnect reports a drop of the current push channel.
func (m *Messenger) OnDisconnect(err error) {
	m.pushDropped(nil, err)
}

// pushDropped clears the push client if pc is the current one, or if pc is
// nil, and reports the drop. Drops of replaced clients are ignored.
func (m *Messenger) pushDropped(pc *push.Client, err error) {
	m.mux.Lock()
	current := m.pushClient != nil && (pc == nil || m.pushClient == pc)
	if current {
		m.pushClient = nil
	}
	m.mux.Unlock()
	if !current {
		jww.DEBUG.Printf("Drop of a replaced push channel ignored: %v", err)
		return
	}

	jww.WARN.Printf("Push channel dropped: %v", err)
	details := "connection lost"
	if err != nil {
		details = err.Error()
	}
	m.events.Report(event.Warning, event.Push, event.PushDisconnected, details)
}
