////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package push

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/heartline/client/conversation"
)

// Event names as the backend sends them.
const (
	EventMessageCreated      = "message-created"
	EventMembershipChanged   = "membership-changed"
	EventTyping              = "typing"
	EventPresence            = "presence"
	EventResourceUpdate      = "resource-update"
	EventConversationRemoved = "conversation-removed"
	EventMessageRead         = "message-read"
)

// envelope frames every socket message in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessageCreated carries a new message, possibly the echo of one the local
// user sent.
type MessageCreated struct {
	Message conversation.Message `json:"message"`
}

// MembershipChanged carries a group's member list after a join or leave.
type MembershipChanged struct {
	ConversationID string                `json:"conversationId"`
	Members        []conversation.Member `json:"members"`
	Left           []string              `json:"left,omitempty"`
}

type Typing struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Typing         bool   `json:"typing"`
}

type Presence struct {
	UserID   string    `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

// ResourceUpdate carries either a full conversation, new or changed, or a
// JSON patch against the client's copy of ConversationID. The patch is an
// RFC 6902 operation list or an RFC 7386 merge patch.
type ResourceUpdate struct {
	ConversationID string                     `json:"conversationId,omitempty"`
	Conversation   *conversation.Conversation `json:"conversation,omitempty"`
	Patch          json.RawMessage            `json:"patch,omitempty"`
}

type ConversationRemoved struct {
	ConversationID string `json:"conversationId"`
}

// MessageRead reports that ReaderID has read up to UpToID.
type MessageRead struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
	UpToID         string `json:"messageId"`
}

// Handler receives decoded events. All calls come from one goroutine, and
// each returns before the next event is read.
type Handler interface {
	OnMessageCreated(MessageCreated)
	OnMembershipChanged(MembershipChanged)
	OnTyping(Typing)
	OnPresence(Presence)
	OnResourceUpdate(ResourceUpdate)
	OnConversationRemoved(ConversationRemoved)
	OnMessageRead(MessageRead)

	// OnDisconnect is called once if the socket drops without Close being
	// called. The client does not reconnect.
	OnDisconnect(err error)
}

// errUnknownEvent is returned by dispatch for events the client does not
// know. They are logged and skipped.
var errUnknownEvent = errors.New("unknown push event")

// dispatch decodes one envelope and hands it to h.
func dispatch(h Handler, env envelope) error {
	switch env.Event {
	case EventMessageCreated:
		var e MessageCreated
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnMessageCreated(e)
	case EventMembershipChanged:
		var e MembershipChanged
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnMembershipChanged(e)
	case EventTyping:
		var e Typing
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnTyping(e)
	case EventPresence:
		var e Presence
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnPresence(e)
	case EventResourceUpdate:
		var e ResourceUpdate
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnResourceUpdate(e)
	case EventConversationRemoved:
		var e ConversationRemoved
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnConversationRemoved(e)
	case EventMessageRead:
		var e MessageRead
		if err := decode(env, &e); err != nil {
			return err
		}
		h.OnMessageRead(e)
	default:
		return errors.Wrapf(errUnknownEvent, "%q", env.Event)
	}
	return nil
}

func decode(env envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return errors.Errorf("%s event has no data", env.Event)
	}
	return errors.Wrapf(json.Unmarshal(env.Data, v),
		"failed to decode %s event", env.Event)
}
