////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package event

// Callback receives every reported Event.
type Callback func(e Event)

// Reporter is the narrow interface handed to packages that surface
// notifications to the user.
type Reporter interface {
	Report(priority Priority, category Category, evtType, details string)
}

// Priority orders how prominently a UI should surface an Event.
type Priority int

const (
	Info Priority = iota
	Warning
	Alert
)

// Category groups events by the feature that raised them.
type Category string

const (
	Send    Category = "send"
	Pin     Category = "pin"
	Payment Category = "payment"
	Session Category = "session"
	Group   Category = "group"
	Push    Category = "push"
)

// Event types reported by the messenger.
const (
	SendFailed        = "SendFailed"
	PinFailed         = "PinFailed"
	PinLimitReached   = "PinLimitReached"
	InsufficientFunds = "InsufficientFunds"
	PremiumRequired   = "PremiumRequired"
	SpendFailed       = "SpendFailed"
	ForcedLogout      = "ForcedLogout"
	JoinFailed        = "JoinFailed"
	LeaveFailed       = "LeaveFailed"
	PushDisconnected  = "PushDisconnected"
)
