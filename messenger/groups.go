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

	"gitlab.com/heartline/client/auth"
	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/payments"
)

// JoinGroup joins a passkey-protected group and adds its conversation.
func (m *Messenger) JoinGroup(ctx context.Context, groupID, passkey string) (
	conversation.Conversation, error) {
	if err := auth.ValidatePasskey(passkey); err != nil {
		return conversation.Conversation{}, err
	}
	conv, err := m.api.JoinGroup(ctx, groupID, passkey)
	if err != nil {
		m.events.Report(event.Warning, event.Group, event.JoinFailed,
			groupID+": "+err.Error())
		return conversation.Conversation{}, m.handle(
			errors.WithMessagef(err, "failed to join %s", groupID))
	}
	m.conversations().Upsert(conv)
	jww.INFO.Printf("Joined group %s", groupID)
	return conv, nil
}

// LeaveGroup leaves a group and drops its conversation and draft. Nothing
// changes locally if the backend refuses.
func (m *Messenger) LeaveGroup(ctx context.Context, groupID string) error {
	if err := m.api.LeaveGroup(ctx, groupID); err != nil {
		m.events.Report(event.Warning, event.Group, event.LeaveFailed,
			groupID+": "+err.Error())
		return m.handle(errors.WithMessagef(err, "failed to leave %s", groupID))
	}
	m.conversations().Remove(groupID)
	if err := m.drafts.Delete(groupID); err != nil {
		jww.WARN.Printf("Failed to drop draft of %s: %+v", groupID, err)
	}
	jww.INFO.Printf("Left group %s", groupID)
	return nil
}

// RespondInvitation accepts or rejects the group invitation carried by a
// message. A resolved invitation cannot be answered again.
func (m *Messenger) RespondInvitation(ctx context.Context, conversationID,
	messageID string, accept bool) error {
	inv, err := m.invitation(conversationID, messageID)
	if err != nil {
		return err
	}
	if inv.Status.Resolved() {
		return errors.Wrapf(conversation.ErrInvitationResolved, "%s is %s",
			messageID, inv.Status)
	}

	joined, err := m.api.RespondInvitation(ctx, inv.GroupID, accept)
	if err != nil {
		return m.handle(errors.WithMessagef(err,
			"failed to answer invitation to %s", inv.GroupID))
	}

	status := conversation.Rejected
	if accept {
		status = conversation.Accepted
	}
	store := m.conversations()
	if err = store.SetInvitationStatus(conversationID, messageID,
		status); err != nil {
		jww.WARN.Printf("Invitation %s answered but not updated: %+v",
			messageID, err)
	}
	m.messagesChanged(conversationID)
	if joined != nil {
		store.Upsert(*joined)
	}
	return nil
}

func (m *Messenger) invitation(conversationID, messageID string) (
	conversation.InvitationContent, error) {
	for _, msg := range m.Messages(conversationID) {
		if msg.ID != messageID {
			continue
		}
		inv, ok := msg.Content.(conversation.InvitationContent)
		if !ok {
			return conversation.InvitationContent{}, errors.Wrapf(
				conversation.ErrNotInvitation, "%s is %s", messageID,
				msg.Type())
		}
		return inv, nil
	}
	return conversation.InvitationContent{}, errors.Wrapf(
		conversation.ErrUnknownMessage, "%s in %s", messageID, conversationID)
}

// Swipe likes or passes on a candidate. Super likes are paid and go through
// the gate. A match adds its conversation.
func (m *Messenger) Swipe(ctx context.Context, userID string,
	d backend.Direction) (backend.SwipeResult, error) {
	var (
		res backend.SwipeResult
		err error
	)
	if d == backend.SuperLike {
		_, err = m.gate.RunWith(ctx, payments.SuperLike,
			func(ctx context.Context) (payments.Wallet, error) {
				var serr error
				if res, serr = m.api.Swipe(ctx, userID, d); serr != nil {
					return payments.Wallet{}, serr
				}
				return m.walletAfter(ctx, payments.SuperLike), nil
			})
		if err != nil {
			m.reportDenial(err)
		}
	} else {
		res, err = m.api.Swipe(ctx, userID, d)
	}
	if err != nil {
		return backend.SwipeResult{}, m.handle(err)
	}

	if res.Matched && res.Conversation != nil {
		m.conversations().Upsert(*res.Conversation)
		jww.INFO.Printf("Matched with %s", userID)
	}
	return res, nil
}

// walletAfter fetches the wallet after a call that spent coins as a side
// effect. If the fetch fails the cached wallet is kept as is; balances only
// ever come from the server.
func (m *Messenger) walletAfter(ctx context.Context,
	action payments.Action) payments.Wallet {
	info, err := m.api.Wallet(ctx)
	if err == nil {
		return info.Wallet
	}
	jww.WARN.Printf("[PAY] wallet fetch after %s failed, keeping cached "+
		"balance: %+v", action, err)
	return m.gate.Wallet()
}
