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

	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/payments"
)

// Gift is an item from the gift catalogue.
type Gift struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Coins    int64  `json:"coins"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// GiftReceipt is the result of sending a gift: the gift message and the
// wallet after the coins were taken.
type GiftReceipt struct {
	Message conversation.Message `json:"message"`
	Wallet  payments.Wallet      `json:"wallet"`
}

func (c *Client) Gifts(ctx context.Context) ([]Gift, error) {
	var gs []Gift
	err := c.call(ctx, http.MethodGet, "/gifts", nil, nil, &gs)
	return gs, err
}

// SendGift sends giftID into a conversation, paying for it in one call.
func (c *Client) SendGift(ctx context.Context, conversationID, giftID,
	clientRef string) (GiftReceipt, error) {
	var r GiftReceipt
	err := c.call(ctx, http.MethodPost, convPath(conversationID, "/gifts"),
		nil, map[string]string{"giftId": giftID, "clientRef": clientRef}, &r)
	return r, err
}
