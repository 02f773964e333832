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

	"github.com/pkg/errors"
)

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketAnswered TicketStatus = "answered"
	TicketClosed   TicketStatus = "closed"
)

type TicketReply struct {
	From      string    `json:"from"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Ticket struct {
	ID        string        `json:"id"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	Status    TicketStatus  `json:"status"`
	Replies   []TicketReply `json:"replies,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (c *Client) CreateTicket(ctx context.Context, subject, body string) (
	Ticket, error) {
	if subject == "" || body == "" {
		return Ticket{}, errors.New("a ticket needs a subject and a body")
	}
	var t Ticket
	err := c.call(ctx, http.MethodPost, "/support/tickets", nil,
		map[string]string{"subject": subject, "body": body}, &t)
	return t, err
}

func (c *Client) Tickets(ctx context.Context) ([]Ticket, error) {
	var ts []Ticket
	err := c.call(ctx, http.MethodGet, "/support/tickets", nil, nil, &ts)
	return ts, err
}

func (c *Client) ReplyTicket(ctx context.Context, ticketID, body string) (
	Ticket, error) {
	var t Ticket
	err := c.call(ctx, http.MethodPost,
		"/support/tickets/"+url.PathEscape(ticketID)+"/replies", nil,
		map[string]string{"body": body}, &t)
	return t, err
}
