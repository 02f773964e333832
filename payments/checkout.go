////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package payments

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Pack is a purchasable bundle of coins.
type Pack struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Coins    int64  `json:"coins"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// Plan is a premium subscription plan.
type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Currency   string `json:"currency"`
	PeriodDays int    `json:"periodDays"`
}

// Order is a payment order opened with the gateway for a coin pack. Amount
// is in the currency's minor unit.
type Order struct {
	ID         string `json:"orderId"`
	PackID     string `json:"packId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Coins      int64  `json:"coins"`
	GatewayKey string `json:"key,omitempty"`
}

// Confirmation is what the payment gateway hands back once the user pays.
// The backend verifies the signature; the client only checks it is present.
type Confirmation struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// CheckoutAPI is the backend surface used by Checkout.
type CheckoutAPI interface {
	CreateOrder(ctx context.Context, packID string) (Order, error)
	VerifyPayment(ctx context.Context, c Confirmation) (Wallet, error)
	Plans(ctx context.Context) ([]Plan, error)
	Subscribe(ctx context.Context, planID string) (Wallet, error)
}

// Checkout tracks open coin orders and credits the gate once the backend
// accepts a payment.
type Checkout struct {
	api  CheckoutAPI
	gate *Gate

	open map[string]Order
	mux  sync.Mutex
}

func NewCheckout(api CheckoutAPI, gate *Gate) *Checkout {
	return &Checkout{
		api:  api,
		gate: gate,
		open: make(map[string]Order),
	}
}

// Begin opens an order for packID.
func (c *Checkout) Begin(ctx context.Context, packID string) (Order, error) {
	if packID == "" {
		return Order{}, errors.New("no pack selected")
	}
	o, err := c.api.CreateOrder(ctx, packID)
	if err != nil {
		return Order{}, errors.WithMessagef(err,
			"failed to create order for pack %s", packID)
	}
	if o.ID == "" {
		return Order{}, errors.Errorf(
			"backend returned an order without an id for pack %s", packID)
	}

	c.mux.Lock()
	c.open[o.ID] = o
	c.mux.Unlock()
	jww.INFO.Printf("[PAY] opened order %s for %d coins", o.ID, o.Coins)
	return o, nil
}

// Complete verifies conf with the backend and credits the returned wallet to
// the gate. The order stays open if verification fails so it can be retried
// by the user.
func (c *Checkout) Complete(ctx context.Context, conf Confirmation) (
	Wallet, error) {
	if conf.OrderID == "" || conf.PaymentID == "" || conf.Signature == "" {
		return Wallet{}, ErrInvalidConfirmation
	}

	c.mux.Lock()
	_, exists := c.open[conf.OrderID]
	c.mux.Unlock()
	if !exists {
		return Wallet{}, errors.Wrapf(ErrUnknownOrder, "%s", conf.OrderID)
	}

	w, err := c.api.VerifyPayment(ctx, conf)
	if err != nil {
		return Wallet{}, errors.WithMessagef(err,
			"failed to verify payment %s", conf.PaymentID)
	}

	c.mux.Lock()
	delete(c.open, conf.OrderID)
	c.mux.Unlock()

	c.gate.Refresh(w)
	jww.INFO.Printf("[PAY] order %s paid, balance %d", conf.OrderID, w.Balance)
	return w, nil
}

// Cancel forgets an open order.
func (c *Checkout) Cancel(orderID string) {
	c.mux.Lock()
	delete(c.open, orderID)
	c.mux.Unlock()
}

// Open returns the orders awaiting payment.
func (c *Checkout) Open() []Order {
	c.mux.Lock()
	defer c.mux.Unlock()
	orders := make([]Order, 0, len(c.open))
	for _, o := range c.open {
		orders = append(orders, o)
	}
	return orders
}

// Plans lists premium plans.
func (c *Checkout) Plans(ctx context.Context) ([]Plan, error) {
	plans, err := c.api.Plans(ctx)
	return plans, errors.WithMessage(err, "failed to list plans")
}

// Subscribe buys planID and refreshes the gate with the premium wallet.
func (c *Checkout) Subscribe(ctx context.Context, planID string) (
	Wallet, error) {
	w, err := c.api.Subscribe(ctx, planID)
	if err != nil {
		return Wallet{}, errors.WithMessagef(err,
			"failed to subscribe to %s", planID)
	}
	c.gate.Refresh(w)
	return w, nil
}
