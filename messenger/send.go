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
	"io"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/heartline/client/attachment"
	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/emoji"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/storage/drafts"
)

// ErrEmptyMessage is returned for blank text sends.
var ErrEmptyMessage = errors.New("message is empty")

// ErrPushNotRunning is returned by operations that need the push channel.
var ErrPushNotRunning = errors.New("push channel is not running")

// SendError reports a failed send. The optimistic entry has been removed and
// any text restored to the conversation's draft.
type SendError struct {
	ConversationID string
	Draft          string
	Err            error
}

func (e *SendError) Error() string {
	return "failed to send to " + e.ConversationID + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }

// SendText sends a text message. It appears in the thread immediately as
// pending and is replaced by the server's copy once confirmed.
func (m *Messenger) SendText(ctx context.Context, conversationID,
	text string) (conversation.Message, error) {
	if strings.TrimSpace(text) == "" {
		return conversation.Message{}, ErrEmptyMessage
	}
	content := conversation.TextContent{Body: text}
	return m.send(ctx, conversationID, content, text,
		func(context.Context) (conversation.Content, error) {
			return content, nil
		})
}

// SendImage normalises an image, uploads it and sends it. The pending entry
// carries the dimensions but no URL until the upload finishes.
func (m *Messenger) SendImage(ctx context.Context, conversationID,
	filename string, r io.Reader) (conversation.Message, error) {
	img, err := attachment.PrepareImage(r, m.params.Attachment)
	if err != nil {
		return conversation.Message{}, err
	}
	pending := conversation.ImageContent{Width: img.Width, Height: img.Height}
	return m.send(ctx, conversationID, pending, "",
		func(ctx context.Context) (conversation.Content, error) {
			up, err := m.api.UploadImage(ctx, filename,
				bytes.NewReader(img.Data))
			if err != nil {
				return nil, errors.WithMessage(err, "failed to upload image")
			}
			return conversation.ImageContent{
				URL:    up.URL,
				Width:  pick(up.Width, img.Width),
				Height: pick(up.Height, img.Height),
			}, nil
		})
}

func pick(server, local int) int {
	if server > 0 {
		return server
	}
	return local
}

// send runs the optimistic send cycle. finalize produces the content that
// is actually posted. No retry is attempted on failure.
func (m *Messenger) send(ctx context.Context, conversationID string,
	pending conversation.Content, draft string,
	finalize func(context.Context) (conversation.Content, error)) (
	conversation.Message, error) {
	if !m.LoggedIn() {
		return conversation.Message{}, ErrLoggedOut
	}
	store := m.conversations()

	tmp, err := store.AppendOptimistic(conversationID, pending)
	if err != nil {
		return conversation.Message{}, err
	}
	m.messagesChanged(conversationID)
	if draft != "" {
		if err = m.drafts.Delete(conversationID); err != nil {
			jww.WARN.Printf("Failed to clear draft of %s: %+v",
				conversationID, err)
		}
	}

	content, err := finalize(ctx)
	var msg conversation.Message
	if err == nil {
		msg, err = m.api.SendMessage(ctx, conversationID, backend.SendRequest{
			Content:   content,
			ClientRef: tmp.ClientRef,
		})
	}
	if err != nil {
		return conversation.Message{}, m.sendFailed(store, conversationID,
			tmp.ID, draft, err)
	}

	if !store.Reconcile(conversationID, tmp.ID, msg) {
		jww.DEBUG.Printf("Send %s in %s already reconciled by push",
			tmp.ID, conversationID)
	}
	m.messagesChanged(conversationID)
	return msg, nil
}

// sendFailed removes the pending entry, restores the draft and reports.
func (m *Messenger) sendFailed(store *conversation.Store, conversationID,
	tempID, draft string, cause error) error {
	store.Fail(conversationID, tempID)
	m.messagesChanged(conversationID)

	if draft != "" {
		if err := m.drafts.Save(conversationID, draft); err != nil {
			jww.ERROR.Printf("Failed to restore draft of %s: %+v",
				conversationID, err)
		}
	}
	jww.WARN.Printf("Send to %s failed: %+v", conversationID, cause)
	m.events.Report(event.Warning, event.Send, event.SendFailed,
		conversationID+": "+cause.Error())
	return m.handle(&SendError{
		ConversationID: conversationID,
		Draft:          draft,
		Err:            cause,
	})
}

// React adds or removes the local user's reaction, reverting it if the
// backend refuses.
func (m *Messenger) React(ctx context.Context, conversationID, messageID,
	reaction string, add bool) error {
	if err := emoji.ValidateReaction(reaction); err != nil {
		return err
	}
	store := m.conversations()
	myID := store.MyID()
	if err := store.ApplyReaction(conversationID, messageID, myID, reaction,
		add); err != nil {
		return err
	}
	m.messagesChanged(conversationID)

	if err := m.api.React(ctx, conversationID, messageID, reaction,
		add); err != nil {
		_ = store.ApplyReaction(conversationID, messageID, myID, reaction, !add)
		m.messagesChanged(conversationID)
		return m.handle(errors.WithMessage(err, "failed to react"))
	}
	return nil
}

// NotifyTyping tells the other members the local user started or stopped
// typing. Start notifications are rate limited and may block briefly.
func (m *Messenger) NotifyTyping(conversationID string, typing bool) error {
	m.mux.RLock()
	pc := m.pushClient
	m.mux.RUnlock()
	if pc == nil {
		return ErrPushNotRunning
	}
	if typing {
		m.typing.Take()
	}
	return pc.SendTyping(conversationID, typing)
}

// SaveDraft keeps unsent text for a conversation. Empty text deletes it.
func (m *Messenger) SaveDraft(conversationID, text string) error {
	return m.drafts.Save(conversationID, text)
}

func (m *Messenger) Draft(conversationID string) (drafts.Draft, bool, error) {
	return m.drafts.Get(conversationID)
}
