////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package payments

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnknownAction       = errors.New("action has no price")
	ErrInsufficientFunds   = errors.New("insufficient coins")
	ErrPremiumRequired     = errors.New("premium membership required")
	ErrBusy                = errors.New("another gated action is in progress")
	ErrUnknownOrder        = errors.New("no open order with that id")
	ErrInvalidConfirmation = errors.New("payment confirmation is incomplete")
)

// DeniedError is returned by Gate.Run when the decision was not Allowed. It
// unwraps to ErrInsufficientFunds or ErrPremiumRequired.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	switch e.Decision.Outcome {
	case InsufficientFunds:
		return fmt.Sprintf("%s: %s needs %d coins, balance is %d",
			ErrInsufficientFunds, e.Decision.Action, e.Decision.Cost.Coins,
			e.Decision.Balance)
	default:
		return fmt.Sprintf("%s: %s", ErrPremiumRequired, e.Decision.Action)
	}
}

func (e *DeniedError) Unwrap() error {
	if e.Decision.Outcome == InsufficientFunds {
		return ErrInsufficientFunds
	}
	return ErrPremiumRequired
}

// DecisionFromError returns the denied decision carried by err, if any.
func DecisionFromError(err error) (Decision, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Decision, true
	}
	return Decision{}, false
}
