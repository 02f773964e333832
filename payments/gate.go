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

// Wallet is the server's view of the user's coins and membership.
type Wallet struct {
	Balance int64 `json:"balance"`
	Premium bool  `json:"premium"`
}

// Spender deducts the price of an action on the server. The returned Wallet
// is authoritative and replaces the cached one.
type Spender interface {
	Spend(ctx context.Context, action Action, reference string) (Wallet, error)
}

// SpendFunc performs a server call that deducts coins as a side effect, such
// as sending a gift, and returns the resulting wallet.
type SpendFunc func(ctx context.Context) (Wallet, error)

// StateCallback observes every transition of the gate.
type StateCallback func(action Action, from, to State)

type transition struct {
	action   Action
	from, to State
}

// Gate holds the cached wallet and runs gated actions one at a time through
// Idle, Checking, an outcome, and for allowed actions Spending and then Spent
// or SpendFailed, before returning to Idle.
type Gate struct {
	spender Spender

	wallet  Wallet
	costs   CostTable
	state   State
	current Action
	onState StateCallback

	mux sync.Mutex
}

// NewGate builds a gate with the given starting wallet. A nil table uses
// DefaultCostTable.
func NewGate(spender Spender, w Wallet, table CostTable) *Gate {
	if table == nil {
		table = DefaultCostTable()
	}
	return &Gate{
		spender: spender,
		wallet:  w,
		costs:   table,
		state:   Idle,
	}
}

// OnStateChange registers the transition callback. It is called outside the
// gate's lock, in transition order.
func (g *Gate) OnStateChange(cb StateCallback) {
	g.mux.Lock()
	g.onState = cb
	g.mux.Unlock()
}

// Refresh replaces the cached wallet with a fresh server copy.
func (g *Gate) Refresh(w Wallet) {
	g.mux.Lock()
	g.wallet = w
	g.mux.Unlock()
}

// SetCosts replaces the price table.
func (g *Gate) SetCosts(table CostTable) {
	cp := make(CostTable, len(table))
	for a, c := range table {
		cp[a] = c
	}
	g.mux.Lock()
	g.costs = cp
	g.mux.Unlock()
}

func (g *Gate) Wallet() Wallet {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.wallet
}

func (g *Gate) State() State {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.state
}

// Check decides action against the cached wallet without changing state.
func (g *Gate) Check(action Action) (Decision, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	return Decide(g.wallet.Balance, g.wallet.Premium, g.costs, action)
}

// Run checks action and, if allowed, spends through the gate's Spender.
func (g *Gate) Run(ctx context.Context, action Action, reference string) (
	Decision, error) {
	if g.spender == nil {
		return Decision{}, errors.New("gate has no spender")
	}
	return g.RunWith(ctx, action, func(ctx context.Context) (Wallet, error) {
		return g.spender.Spend(ctx, action, reference)
	})
}

// RunWith checks action and, if allowed, calls spend. A denied decision is
// returned with a *DeniedError and spend is never called. When spend fails
// the cached wallet is left as it was.
func (g *Gate) RunWith(ctx context.Context, action Action, spend SpendFunc) (
	Decision, error) {
	return g.run(ctx, action, nil, spend)
}

// RunPriced is RunWith for items priced individually, such as gifts. coins
// replaces the table's price; the action's premium requirement still applies.
func (g *Gate) RunPriced(ctx context.Context, action Action, coins int64,
	spend SpendFunc) (Decision, error) {
	if coins < 0 {
		return Decision{}, errors.Errorf("negative price %d for %s",
			coins, action)
	}
	return g.run(ctx, action, &coins, spend)
}

func (g *Gate) run(ctx context.Context, action Action, price *int64,
	spend SpendFunc) (Decision, error) {
	var log []transition

	g.mux.Lock()
	if g.state != Idle {
		busy := g.current
		g.mux.Unlock()
		return Decision{}, errors.Wrapf(ErrBusy, "%s is running", busy)
	}
	g.current = action
	log = g.move(log, Checking)

	costs := g.costs
	if price != nil {
		c := costs[action]
		c.Coins = *price
		costs = CostTable{action: c}
	}
	d, err := Decide(g.wallet.Balance, g.wallet.Premium, costs, action)
	if err != nil {
		log = g.move(log, Idle)
		g.mux.Unlock()
		g.notify(log)
		return d, err
	}

	log = g.move(log, d.Outcome)
	if d.Outcome != Allowed {
		log = g.move(log, Idle)
		g.mux.Unlock()
		g.notify(log)
		jww.DEBUG.Printf("[PAY] %s denied: %s", action, d.Outcome)
		return d, &DeniedError{Decision: d}
	}

	log = g.move(log, Spending)
	g.mux.Unlock()
	g.notify(log)
	log = log[:0]

	w, err := spend(ctx)

	g.mux.Lock()
	if err != nil {
		log = g.move(log, SpendFailed)
		log = g.move(log, Idle)
		g.mux.Unlock()
		g.notify(log)
		jww.WARN.Printf("[PAY] spend for %s failed: %+v", action, err)
		return d, errors.WithMessagef(err, "failed to spend for %s", action)
	}
	g.wallet = w
	d.Balance = w.Balance
	log = g.move(log, Spent)
	log = g.move(log, Idle)
	g.mux.Unlock()
	g.notify(log)

	jww.DEBUG.Printf("[PAY] %s spent %d coins, balance %d",
		action, d.Cost.Coins, w.Balance)
	return d, nil
}

// move must be called with the lock held.
func (g *Gate) move(log []transition, to State) []transition {
	log = append(log, transition{action: g.current, from: g.state, to: to})
	g.state = to
	return log
}

func (g *Gate) notify(log []transition) {
	g.mux.Lock()
	cb := g.onState
	g.mux.Unlock()
	if cb == nil {
		return
	}
	for _, t := range log {
		cb(t.action, t.from, t.to)
	}
}
