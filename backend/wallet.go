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

	"gitlab.com/heartline/client/payments"
)

// WalletInfo is the wallet endpoint's payload: the balance plus the prices
// the gate should use.
type WalletInfo struct {
	payments.Wallet
	Costs payments.CostTable `json:"costs,omitempty"`
}

func (c *Client) Wallet(ctx context.Context) (WalletInfo, error) {
	var w WalletInfo
	err := c.call(ctx, http.MethodGet, "/wallet", nil, nil, &w)
	return w, err
}

// Spend deducts the price of action on the server and returns the resulting
// wallet. It satisfies payments.Spender.
func (c *Client) Spend(ctx context.Context, action payments.Action,
	reference string) (payments.Wallet, error) {
	var w payments.Wallet
	err := c.call(ctx, http.MethodPost, "/wallet/spend", nil,
		map[string]string{"action": string(action), "reference": reference},
		&w)
	return w, err
}

func (c *Client) Packs(ctx context.Context) ([]payments.Pack, error) {
	var ps []payments.Pack
	err := c.call(ctx, http.MethodGet, "/wallet/packs", nil, nil, &ps)
	return ps, err
}

// CreateOrder opens a gateway order for a coin pack.
func (c *Client) CreateOrder(ctx context.Context, packID string) (
	payments.Order, error) {
	var o payments.Order
	err := c.call(ctx, http.MethodPost, "/wallet/orders", nil,
		map[string]string{"packId": packID}, &o)
	return o, err
}

// VerifyPayment hands the gateway's signed confirmation to the backend, which
// credits the coins and returns the new wallet.
func (c *Client) VerifyPayment(ctx context.Context,
	conf payments.Confirmation) (payments.Wallet, error) {
	var w payments.Wallet
	err := c.call(ctx, http.MethodPost, "/wallet/orders/verify", nil, conf, &w)
	return w, err
}

func (c *Client) Plans(ctx context.Context) ([]payments.Plan, error) {
	var ps []payments.Plan
	err := c.call(ctx, http.MethodGet, "/subscriptions/plans", nil, nil, &ps)
	return ps, err
}

func (c *Client) Subscribe(ctx context.Context, planID string) (
	payments.Wallet, error) {
	var w payments.Wallet
	err := c.call(ctx, http.MethodPost, "/subscriptions", nil,
		map[string]string{"planId": planID}, &w)
	return w, err
}
