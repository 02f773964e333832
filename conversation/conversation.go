////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"time"

	"github.com/pkg/errors"
)

// Kind distinguishes one-to-one matches from groups.
type Kind uint8

const (
	Match Kind = iota
	Group
)

func (k Kind) String() string {
	if k == Group {
		return "group"
	}
	return "match"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "match", "private", "":
		*k = Match
	case "group":
		*k = Group
	default:
		return errors.Errorf("unknown conversation kind %q", text)
	}
	return nil
}

// Member summarises a participant for list display.
type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// Conversation is the list-level view of a match or group.
type Conversation struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Members     []Member  `json:"members"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
	UnreadCount int       `json:"unreadCount"`
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// ActivityTime is the ordering key of the conversation list: the last
// message time, else the last update time, else the creation time.
func (c Conversation) ActivityTime() time.Time {
	if c.LastMessage != nil && !c.LastMessage.CreatedAt.IsZero() {
		return c.LastMessage.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// HasMember reports whether the user is listed as a member.
func (c Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c Conversation) Clone() Conversation {
	if c.Members != nil {
		c.Members = append([]Member(nil), c.Members...)
	}
	if c.LastMessage != nil {
		last := c.LastMessage.Clone()
		c.LastMessage = &last
	}
	return c
}

// CloneAll deep copies a slice of conversations.
func CloneAll(convs []Conversation) []Conversation {
	if convs == nil {
		return nil
	}
	out := make([]Conversation, len(convs))
	for i := range convs {
		out[i] = convs[i].Clone()
	}
	return out
}
