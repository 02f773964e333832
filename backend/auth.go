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
	"time"
)

// Profile is the logged-in user.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
	Premium  bool   `json:"premium"`
}

// Session is what a successful OTP verification returns.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	User      Profile   `json:"user"`
}

// RequestOTP asks the backend to text a one-time code to phone.
func (c *Client) RequestOTP(ctx context.Context, phone string) error {
	return c.call(ctx, http.MethodPost, "/auth/otp", nil,
		map[string]string{"phone": phone}, nil)
}

// VerifyOTP exchanges a one-time code for a session.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (
	Session, error) {
	var s Session
	err := c.call(ctx, http.MethodPost, "/auth/verify", nil,
		map[string]string{"phone": phone, "otp": code}, &s)
	return s, err
}

// Logout invalidates the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me returns the logged-in user's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.call(ctx, http.MethodGet, "/me", nil, nil, &p)
	return p, err
}
