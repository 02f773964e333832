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
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/payments"
	"gitlab.com/heartline/client/switchboard"
)

// SendGift sends a gift into a conversation through the payment gate. The
// gift shows as pending only once the gate has allowed it; a denial leaves
// the thread untouched and returns a *payments.DeniedError.
func (m *Messenger) SendGift(ctx context.Context, conversationID string,
	gift backend.Gift) (conversation.Message, error) {
	if !m.LoggedIn() {
		return conversation.Message{}, ErrLoggedOut
	}
	var sent conversation.Message
	_, err := m.gate.RunPriced(ctx, payments.SendGift, gift.Coins,
		func(ctx context.Context) (payments.Wallet, error) {
			store := m.conversations()
			tmp, err := store.AppendOptimistic(conversationID,
				conversation.GiftContent{
					GiftID: gift.ID,
					Name:   gift.Name,
					Coins:  gift.Coins,
				})
			if err != nil {
				return payments.Wallet{}, err
			}
			m.messagesChanged(conversationID)

			receipt, err := m.api.SendGift(ctx, conversationID, gift.ID,
				tmp.ClientRef)
			if err != nil {
				store.Fail(conversationID, tmp.ID)
				m.messagesChanged(conversationID)
				return payments.Wallet{}, err
			}
			store.Reconcile(conversationID, tmp.ID, receipt.Message)
			m.messagesChanged(conversationID)
			sent = receipt.Message
			return receipt.Wallet, nil
		})
	if err != nil {
		m.reportDenial(err)
		return conversation.Message{}, m.handle(err)
	}
	return sent, nil
}

// UnlockPhoto pays to unlock a photo for the configured duration.
func (m *Messenger) UnlockPhoto(ctx context.Context, photoID string) error {
	if m.unlocks.IsUnlocked(photoID) {
		return nil
	}
	if _, err := m.gate.Run(ctx, payments.UnlockPhoto, photoID); err != nil {
		m.reportDenial(err)
		return m.handle(err)
	}
	if !m.unlocks.Grant(photoID, netTime.Now().Add(m.params.UnlockDuration)) {
		return errors.Errorf("unlock of %s paid but not recorded", photoID)
	}
	m.switchboard.Speak(switchboard.Change{Kind: switchboard.UnlockChanged})
	return nil
}
