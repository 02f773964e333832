////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"strconv"

	"github.com/pkg/errors"
)

// InvitationStatus is the state of a group invitation embedded in a message.
type InvitationStatus uint8

const (
	// NoInvitation is the zero value, used by messages that never carried a
	// live invitation.
	NoInvitation InvitationStatus = iota
	Pending
	Accepted
	Rejected
)

var invitationStatusNames = [...]string{
	NoInvitation: "",
	Pending:      "pending",
	Accepted:     "accepted",
	Rejected:     "rejected",
}

func (s InvitationStatus) String() string {
	if int(s) < len(invitationStatusNames) {
		if s == NoInvitation {
			return "none"
		}
		return invitationStatusNames[s]
	}
	return "INVALID INVITATION STATUS: " + strconv.Itoa(int(s))
}

// Resolved is true once the invitee has accepted or rejected.
func (s InvitationStatus) Resolved() bool {
	return s == Accepted || s == Rejected
}

func (s InvitationStatus) MarshalText() ([]byte, error) {
	if int(s) >= len(invitationStatusNames) {
		return nil, errors.Errorf("unknown invitation status %d", s)
	}
	return []byte(invitationStatusNames[s]), nil
}

func (s *InvitationStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "none":
		*s = NoInvitation
	case "pending":
		*s = Pending
	case "accepted":
		*s = Accepted
	case "rejected", "declined":
		*s = Rejected
	default:
		return errors.Errorf("unknown invitation status %q", text)
	}
	return nil
}
