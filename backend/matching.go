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

	"github.com/pkg/errors"
	"gitlab.com/heartline/client/conversation"
)

// Direction is a swipe decision.
type Direction string

const (
	Like      Direction = "like"
	Pass      Direction = "pass"
	SuperLike Direction = "superlike"
)

// SwipeResult reports whether a like produced a match.
type SwipeResult struct {
	Matched      bool                       `json:"matched"`
	Conversation *conversation.Conversation `json:"conversation,omitempty"`
}

// Candidate is a profile offered for swiping.
type Candidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	Bio      string   `json:"bio,omitempty"`
	Photos   []string `json:"photos"`
	Distance float64  `json:"distanceKm,omitempty"`
}

// Candidates returns the next profiles to swipe on.
func (c *Client) Candidates(ctx context.Context) ([]Candidate, error) {
	var cs []Candidate
	err := c.call(ctx, http.MethodGet, "/matches/candidates", nil, nil, &cs)
	return cs, err
}

func (c *Client) Swipe(ctx context.Context, userID string, d Direction) (
	SwipeResult, error) {
	switch d {
	case Like, Pass, SuperLike:
	default:
		return SwipeResult{}, errors.Errorf("invalid swipe direction %q", d)
	}
	var r SwipeResult
	err := c.call(ctx, http.MethodPost, "/matches/swipe", nil,
		map[string]string{"userId": userID, "direction": string(d)}, &r)
	return r, err
}
