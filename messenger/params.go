////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

// params.go defines the parameters passed down into the messenger's
// submodules.

import (
	"encoding/json"
	"time"

	"gitlab.com/heartline/client/attachment"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/presence"
	"gitlab.com/heartline/client/push"
)

type Params struct {
	Push       push.Params
	Attachment attachment.Params

	// PageSize is how many messages Open and LoadEarlier fetch at once.
	PageSize int

	// TypingPerSecond caps how many typing notifications are sent.
	TypingPerSecond int

	// TypingTimeout is how long a remote typing indicator lasts without a
	// refresh.
	TypingTimeout time.Duration

	// UnlockDuration is how long a paid photo unlock lasts.
	UnlockDuration time.Duration

	EventQueueSize int
}

// GetDefaultParams returns the default messenger parameters.
func GetDefaultParams() Params {
	return Params{
		Push:            push.GetDefaultParams(),
		Attachment:      attachment.GetDefaultParams(),
		PageSize:        50,
		TypingPerSecond: 1,
		TypingTimeout:   presence.DefaultTypingTimeout,
		UnlockDuration:  24 * time.Hour,
		EventQueueSize:  event.DefaultQueueSize,
	}
}

// ParseParameters returns the default Params, or override with given
// parameters, if set.
func ParseParameters(paramsJSON string) (Params, error) {
	p := GetDefaultParams()
	if len(paramsJSON) > 0 {
		err := json.Unmarshal([]byte(paramsJSON), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}
