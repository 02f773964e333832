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
	"time"

	"gitlab.com/heartline/client/payments"
)

// Event is a real-world meetup users can join.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt"`
	Coins       int64     `json:"coins"`
	PremiumOnly bool      `json:"premiumOnly"`
	Attending   bool      `json:"attending"`
}

func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var es []Event
	err := c.call(ctx, http.MethodGet, "/events", nil, nil, &es)
	return es, err
}

// RSVP joins an event and returns the wallet after any fee.
func (c *Client) RSVP(ctx context.Context, eventID string) (
	payments.Wallet, error) {
	var w payments.Wallet
	err := c.call(ctx, http.MethodPost,
		"/events/"+url.PathEscape(eventID)+"/rsvp", nil, nil, &w)
	return w, err
}
