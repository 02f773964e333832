////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// TempIDPrefix starts every locally generated message ID.
const TempIDPrefix = "temp-"

// Message is one entry of a conversation thread.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        Content

	// ClientRef is the temporary ID the sender's client assigned before the
	// backend confirmed the message. Echoes of our own sends carry it.
	ClientRef string

	// Reactions maps an emoji to the IDs of the users who reacted with it.
	Reactions map[string][]string

	CreatedAt time.Time
	UpdatedAt time.Time
	Delivered bool
	Read      bool

	// Pending is set on optimistic entries until they are reconciled. It is
	// never sent over the wire.
	Pending bool
}

// Type returns the tag of the message's content.
func (m Message) Type() MessageType {
	if m.Content == nil {
		return Text
	}
	return m.Content.Type()
}

// Preview returns the list preview of the message.
func (m Message) Preview() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.Preview()
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	if m.Reactions != nil {
		reactions := make(map[string][]string, len(m.Reactions))
		for emoji, users := range m.Reactions {
			reactions[emoji] = append([]string(nil), users...)
		}
		m.Reactions = reactions
	}
	return m
}

func (m Message) newerThan(o *Message) bool {
	return o == nil || m.CreatedAt.After(o.CreatedAt)
}

type wireMessage struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	ClientRef      string              `json:"clientRef,omitempty"`
	Type           MessageType         `json:"type"`
	Content        json.RawMessage     `json:"content"`
	Reactions      map[string][]string `json:"reactions,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt,omitempty"`
	Delivered      bool                `json:"delivered"`
	Read           bool                `json:"read"`
}

// MarshalJSON encodes the message with its content under a type tag.
func (m Message) MarshalJSON() ([]byte, error) {
	var content json.RawMessage
	if m.Content != nil {
		var err error
		if content, err = json.Marshal(m.Content); err != nil {
			return nil, err
		}
	}
	return json.Marshal(wireMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ClientRef:      m.ClientRef,
		Type:           m.Type(),
		Content:        content,
		Reactions:      m.Reactions,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Delivered:      m.Delivered,
		Read:           m.Read,
	})
}

// UnmarshalJSON decodes the content variant named by the type tag.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := decodeContent(w.Type, w.Content)
	if err != nil {
		return errors.WithMessagef(err, "message %s", w.ID)
	}
	*m = Message{
		ID:             w.ID,
		ConversationID: w.ConversationID,
		SenderID:       w.SenderID,
		ClientRef:      w.ClientRef,
		Content:        content,
		Reactions:      w.Reactions,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
		Delivered:      w.Delivered,
		Read:           w.Read,
	}
	return nil
}

// toggleReaction adds or removes the user from the emoji's reactor list.
// Returns false if nothing changed.
func (m *Message) toggleReaction(emoji, userID string, add bool) bool {
	users := m.Reactions[emoji]
	idx := -1
	for i, u := range users {
		if u == userID {
			idx = i
			break
		}
	}
	if add == (idx >= 0) {
		return false
	}

	if add {
		if m.Reactions == nil {
			m.Reactions = make(map[string][]string)
		}
		m.Reactions[emoji] = append(users, userID)
		return true
	}

	users = append(users[:idx:idx], users[idx+1:]...)
	if len(users) == 0 {
		delete(m.Reactions, emoji)
	} else {
		m.Reactions[emoji] = users
	}
	return true
}
