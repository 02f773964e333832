////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Class is the error taxonomy the client reacts to.
type Class uint8

const (
	// ClassTransient covers transport failures, 5xx responses and bodies that
	// cannot be decoded. They are reported to the user and never retried.
	ClassTransient Class = iota
	// ClassAuthorization means the session is gone and the user must log in
	// again.
	ClassAuthorization
	// ClassBusiness is a rule the backend refused to break: not enough coins,
	// premium required, pin limit, wrong passkey.
	ClassBusiness
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassAuthorization:
		return "authorization"
	case ClassBusiness:
		return "business"
	default:
		return fmt.Sprintf("INVALID CLASS: %d", c)
	}
}

// Business error codes the backend is known to send.
const (
	CodeInsufficientCoins = "insufficient_coins"
	CodePremiumRequired   = "premium_required"
	CodePinLimitReached   = "pin_limit_reached"
	CodeInvalidPasskey    = "invalid_passkey"
	CodeInvalidOTP        = "invalid_otp"
)

// Error is a classified backend failure.
type Error struct {
	Class   Class
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.String())
	b.WriteString(" error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// expiredMarkers are message fragments some endpoints send with a 200 or 400
// status when the token has expired.
var expiredMarkers = []string{
	"session expired",
	"token expired",
	"invalid token",
	"jwt expired",
	"unauthorized",
}

// classify builds the error for a failed response. A 403 carrying a
// business code (premium-only endpoints) is a business rejection; a bare 403
// means the token was refused.
func classify(status int, code, message string) *Error {
	e := &Error{Status: status, Code: code, Message: message}
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusUnauthorized:
		e.Class = ClassAuthorization
	case containsAny(lower, expiredMarkers):
		e.Class = ClassAuthorization
	case status == http.StatusForbidden && code == "":
		e.Class = ClassAuthorization
	case status >= 500:
		e.Class = ClassTransient
	default:
		e.Class = ClassBusiness
	}
	return e
}

func transient(err error, format string, args ...interface{}) *Error {
	return &Error{
		Class:   ClassTransient,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ClassOf returns the class of err, and false if err did not come from the
// backend client.
func ClassOf(err error) (Class, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return ClassTransient, false
}

func IsAuthorization(err error) bool {
	c, ok := ClassOf(err)
	return ok && c == ClassAuthorization
}

func IsBusiness(err error) bool {
	c, ok := ClassOf(err)
	return ok && c == ClassBusiness
}

func IsTransient(err error) bool {
	c, ok := ClassOf(err)
	return ok && c == ClassTransient
}

// HasCode reports whether err is a business error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ClassBusiness && e.Code == code
}
