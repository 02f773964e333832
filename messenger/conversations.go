////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/payments"
	"gitlab.com/heartline/client/pin"
	"gitlab.com/heartline/client/switchboard"
)

// Refresh fetches the conversation list and the wallet. Anything pushed or
// sent while the list was in flight is kept.
func (m *Messenger) Refresh(ctx context.Context) error {
	if !m.LoggedIn() {
		return ErrLoggedOut
	}
	store := m.conversations()

	since := store.Mark()
	list, err := m.api.ListConversations(ctx)
	if err != nil {
		return m.handle(errors.WithMessage(err,
			"failed to fetch conversations"))
	}
	store.Replace(list.All(), since)

	pinned := make([]conversation.Conversation, 0, len(list.Pinned))
	isPinned := make(map[string]struct{}, len(list.Pinned))
	for _, c := range list.Pinned {
		if cur, ok := store.Conversation(c.ID); ok {
			pinned = append(pinned, cur)
			isPinned[c.ID] = struct{}{}
		}
	}
	var unpinned []conversation.Conversation
	for _, c := range store.Conversations() {
		if _, ok := isPinned[c.ID]; !ok {
			unpinned = append(unpinned, c)
		}
	}
	m.pins.Load(pinned, unpinned, list.MaxPinned)

	return m.RefreshWallet(ctx)
}

// RefreshWallet replaces the cached wallet and prices with the server's.
func (m *Messenger) RefreshWallet(ctx context.Context) error {
	info, err := m.api.Wallet(ctx)
	if err != nil {
		return m.handle(errors.WithMessage(err, "failed to fetch wallet"))
	}
	m.gate.Refresh(info.Wallet)
	if len(info.Costs) > 0 {
		m.gate.SetCosts(info.Costs)
	}
	m.switchboard.Speak(switchboard.Change{Kind: switchboard.WalletChanged})
	return nil
}

// Open loads the latest page of a thread and marks the conversation read.
func (m *Messenger) Open(ctx context.Context, conversationID string) (
	[]conversation.Message, error) {
	if err := m.fetchPage(ctx, conversationID, ""); err != nil {
		return nil, err
	}
	if err := m.MarkRead(ctx, conversationID); err != nil {
		jww.WARN.Printf("Failed to mark %s read: %+v", conversationID, err)
	}
	return m.Messages(conversationID), nil
}

// LoadEarlier fetches the page before the oldest loaded message.
func (m *Messenger) LoadEarlier(ctx context.Context, conversationID string) (
	[]conversation.Message, error) {
	before := ""
	if thread := m.Messages(conversationID); len(thread) > 0 {
		for _, msg := range thread {
			if !msg.Pending {
				before = msg.ID
				break
			}
		}
	}
	if err := m.fetchPage(ctx, conversationID, before); err != nil {
		return nil, err
	}
	return m.Messages(conversationID), nil
}

func (m *Messenger) fetchPage(ctx context.Context, conversationID,
	before string) error {
	store := m.conversations()
	since := store.Mark()
	page, err := m.api.Messages(ctx, conversationID, before, m.params.PageSize)
	if err != nil {
		return m.handle(errors.WithMessagef(err,
			"failed to fetch messages of %s", conversationID))
	}
	if err = store.IngestMessages(conversationID, page, since); err != nil {
		return err
	}
	m.messagesChanged(conversationID)
	return nil
}

// MarkRead clears the unread counter locally, then tells the backend.
func (m *Messenger) MarkRead(ctx context.Context, conversationID string) error {
	c, ok := m.Conversation(conversationID)
	if !ok {
		return errors.Wrapf(conversation.ErrUnknownConversation, "%s",
			conversationID)
	}
	if c.UnreadCount == 0 {
		return nil
	}
	m.conversations().MarkRead(conversationID)
	return m.handle(m.api.MarkRead(ctx, conversationID))
}

////////////////////////////////////////////////////////////////////////////////
// Pins                                                                       //
////////////////////////////////////////////////////////////////////////////////

// Pin pins a conversation. At the server's limit it fails with
// pin.ErrPinLimit without a network call.
func (m *Messenger) Pin(ctx context.Context, conversationID string) error {
	err := m.pins.Pin(ctx, conversationID)
	if err != nil {
		m.reportPinFailure(err)
		return m.handle(err)
	}
	m.conversations().SetPinned(conversationID, true)
	return nil
}

func (m *Messenger) Unpin(ctx context.Context, conversationID string) error {
	err := m.pins.Unpin(ctx, conversationID)
	if err != nil {
		m.reportPinFailure(err)
		return m.handle(err)
	}
	m.conversations().SetPinned(conversationID, false)
	return nil
}

func (m *Messenger) reportPinFailure(err error) {
	m.switchboard.Speak(switchboard.Change{
		Kind: switchboard.ConversationChanged})
	if errors.Is(err, pin.ErrPinLimit) {
		m.events.Report(event.Info, event.Pin, event.PinLimitReached,
			err.Error())
		return
	}
	m.events.Report(event.Warning, event.Pin, event.PinFailed, err.Error())
}

////////////////////////////////////////////////////////////////////////////////
// Paid actions                                                               //
////////////////////////////////////////////////////////////////////////////////

// reportDenial surfaces a gate decision the user has to act on.
func (m *Messenger) reportDenial(err error) {
	if d, ok := payments.DecisionFromError(err); ok {
		evtType := event.InsufficientFunds
		if d.Outcome == payments.PremiumRequired {
			evtType = event.PremiumRequired
		}
		m.events.Report(event.Info, event.Payment, evtType,
			d.Remediation().String())
		return
	}
	if errors.Is(err, payments.ErrBusy) {
		return
	}
	m.events.Report(event.Warning, event.Payment, event.SpendFailed,
		err.Error())
}
