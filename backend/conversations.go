////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"gitlab.com/heartline/client/conversation"
)

// ConversationList is the conversation list endpoint's payload.
type ConversationList struct {
	Pinned        []conversation.Conversation `json:"pinned"`
	Conversations []conversation.Conversation `json:"conversations"`
	MaxPinned     int                         `json:"maxPinned"`
}

// All returns pinned then unpinned conversations with Pinned set to match.
func (l ConversationList) All() []conversation.Conversation {
	all := make([]conversation.Conversation, 0,
		len(l.Pinned)+len(l.Conversations))
	for _, c := range l.Pinned {
		c.Pinned = true
		all = append(all, c)
	}
	for _, c := range l.Conversations {
		c.Pinned = false
		all = append(all, c)
	}
	return all
}

// SendRequest is the body of a message send.
type SendRequest struct {
	Content conversation.Content

	// ClientRef is echoed back on the stored message and its push so the
	// sender can match them to the optimistic entry.
	ClientRef string
}

type wireSend struct {
	Type      conversation.MessageType `json:"type"`
	Content   conversation.Content     `json:"content"`
	ClientRef string                   `json:"clientRef,omitempty"`
}

func (c *Client) ListConversations(ctx context.Context) (
	ConversationList, error) {
	var l ConversationList
	err := c.call(ctx, http.MethodGet, "/conversations", nil, nil, &l)
	return l, err
}

// Messages returns up to limit messages older than before, oldest first. An
// empty before returns the latest page.
func (c *Client) Messages(ctx context.Context, conversationID, before string,
	limit int) ([]conversation.Message, error) {
	q := url.Values{}
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var msgs []conversation.Message
	err := c.call(ctx, http.MethodGet, convPath(conversationID, "/messages"),
		q, nil, &msgs)
	return msgs, err
}

// SendMessage posts a message and returns the stored copy.
func (c *Client) SendMessage(ctx context.Context, conversationID string,
	r SendRequest) (conversation.Message, error) {
	var m conversation.Message
	err := c.call(ctx, http.MethodPost, convPath(conversationID, "/messages"),
		nil, wireSend{
			Type:      r.Content.Type(),
			Content:   r.Content,
			ClientRef: r.ClientRef,
		}, &m)
	return m, err
}

func (c *Client) Pin(ctx context.Context, conversationID string) error {
	return c.call(ctx, http.MethodPost, convPath(conversationID, "/pin"),
		nil, nil, nil)
}

func (c *Client) Unpin(ctx context.Context, conversationID string) error {
	return c.call(ctx, http.MethodDelete, convPath(conversationID, "/pin"),
		nil, nil, nil)
}

// MarkRead marks everything in the conversation read for the user.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.call(ctx, http.MethodPost, convPath(conversationID, "/read"),
		nil, nil, nil)
}

// React toggles the user's emoji reaction on a message.
func (c *Client) React(ctx context.Context, conversationID, messageID,
	emoji string, add bool) error {
	method := http.MethodPost
	if !add {
		method = http.MethodDelete
	}
	return c.call(ctx, method, convPath(conversationID, "/messages/"+
		url.PathEscape(messageID)+"/reactions"), nil,
		map[string]string{"emoji": emoji}, nil)
}

func convPath(id, suffix string) string {
	return "/conversations/" + url.PathEscape(id) + suffix
}
