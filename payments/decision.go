////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package payments

import (
	"strconv"

	"github.com/pkg/errors"
)

// Action is a user action that may cost coins or require premium.
type Action string

const (
	SendGift           Action = "send_gift"
	UnlockPhoto        Action = "unlock_photo"
	SuperLike          Action = "super_like"
	Boost              Action = "boost"
	JoinEvent          Action = "join_event"
	MessageBeforeMatch Action = "message_before_match"
)

// Cost is the price of an action. A zero Cost is free for everybody.
type Cost struct {
	Coins       int64 `json:"coins"`
	PremiumOnly bool  `json:"premiumOnly"`
}

// CostTable prices every gated action.
type CostTable map[Action]Cost

// DefaultCostTable is used until the backend sends its own prices.
func DefaultCostTable() CostTable {
	return CostTable{
		SendGift:           {Coins: 10},
		UnlockPhoto:        {Coins: 5},
		SuperLike:          {Coins: 3},
		Boost:              {Coins: 20},
		JoinEvent:          {Coins: 0, PremiumOnly: true},
		MessageBeforeMatch: {Coins: 2, PremiumOnly: true},
	}
}

// State is a step of the gated-action state machine. Allowed,
// InsufficientFunds and PremiumRequired double as decision outcomes.
type State uint8

const (
	Idle State = iota
	Checking
	Allowed
	InsufficientFunds
	PremiumRequired
	Spending
	Spent
	SpendFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Checking:
		return "Checking"
	case Allowed:
		return "Allowed"
	case InsufficientFunds:
		return "InsufficientFunds"
	case PremiumRequired:
		return "PremiumRequired"
	case Spending:
		return "Spending"
	case Spent:
		return "Spent"
	case SpendFailed:
		return "SpendFailed"
	default:
		return "INVALID STATE: " + strconv.Itoa(int(s))
	}
}

// Remediation is what the user can do about a denied action.
type Remediation uint8

const (
	NoRemediation Remediation = iota
	PurchaseCoins
	UpgradePremium
)

func (r Remediation) String() string {
	switch r {
	case NoRemediation:
		return "none"
	case PurchaseCoins:
		return "purchase coins"
	case UpgradePremium:
		return "upgrade to premium"
	default:
		return "INVALID REMEDIATION: " + strconv.Itoa(int(r))
	}
}

// Decision is the result of checking one action against a wallet.
type Decision struct {
	Action  Action
	Outcome State
	Cost    Cost
	Balance int64

	// Shortfall is how many coins are missing when Outcome is
	// InsufficientFunds.
	Shortfall int64
}

// Remediation returns the purchase or upgrade path for a denied decision.
func (d Decision) Remediation() Remediation {
	switch d.Outcome {
	case InsufficientFunds:
		return PurchaseCoins
	case PremiumRequired:
		return UpgradePremium
	default:
		return NoRemediation
	}
}

// Decide checks action against the balance and premium status. Premium
// requirements are checked before the price, so a non-premium user with
// plenty of coins is still told to upgrade.
func Decide(balance int64, premium bool, table CostTable, action Action) (
	Decision, error) {
	cost, exists := table[action]
	if !exists {
		return Decision{}, errors.Wrapf(ErrUnknownAction, "%q", action)
	}

	d := Decision{
		Action:  action,
		Cost:    cost,
		Balance: balance,
	}
	switch {
	case cost.PremiumOnly && !premium:
		d.Outcome = PremiumRequired
	case balance < cost.Coins:
		d.Outcome = InsufficientFunds
		d.Shortfall = cost.Coins - balance
	default:
		d.Outcome = Allowed
	}
	return d, nil
}
