////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package auth holds the client-side checks run before anything is sent to
// the backend: phone numbers, one-time codes and group passkeys.
package auth

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrValidation is wrapped by every error in this package.
var ErrValidation = errors.New("invalid input")

const (
	OTPLength        = 6
	MinPasskeyLength = 4
	MaxPasskeyLength = 32
)

var (
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
	digitRuns    = regexp.MustCompile(`[0-9]+`)
	e164Pattern  = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	otpSeparator = strings.NewReplacer(" ", "", "-", "", "\u00a0", "")
)

// ValidateOTP checks that code is exactly six ASCII digits.
func ValidateOTP(code string) error {
	if !otpPattern.MatchString(code) {
		return errors.Wrapf(ErrValidation, "code must be %d digits",
			OTPLength)
	}
	return nil
}

// OTPFromClipboard pulls a one-time code out of pasted text. It accepts the
// bare code, the code split by spaces or dashes ("123 456"), or a message
// containing exactly one six-digit run ("Your code is 123456").
func OTPFromClipboard(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.Wrap(ErrValidation, "clipboard is empty")
	}

	if compact := otpSeparator.Replace(text); otpPattern.MatchString(compact) {
		return compact, nil
	}

	var matches []string
	for _, run := range digitRuns.FindAllString(text, -1) {
		if len(run) == OTPLength {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.Wrap(ErrValidation,
			"clipboard does not contain a code")
	case 1:
		return matches[0], nil
	default:
		return "", errors.Wrap(ErrValidation,
			"clipboard contains more than one code")
	}
}

// ValidatePasskey checks a group passkey: 4 to 32 characters, none of them
// whitespace or control characters.
func ValidatePasskey(passkey string) error {
	if !utf8.ValidString(passkey) {
		return errors.Wrap(ErrValidation, "passkey is not valid text")
	}
	n := utf8.RuneCountInString(passkey)
	if n < MinPasskeyLength || n > MaxPasskeyLength {
		return errors.Wrapf(ErrValidation,
			"passkey must be %d to %d characters", MinPasskeyLength,
			MaxPasskeyLength)
	}
	for _, r := range passkey {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.Wrap(ErrValidation,
				"passkey cannot contain spaces")
		}
	}
	return nil
}

// NormalizePhone strips formatting characters and returns the number in
// E.164 form. A leading "00" is read as "+".
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", errors.Wrapf(ErrValidation,
				"phone number contains %q", r)
		}
	}
	normalized := b.String()
	if strings.HasPrefix(normalized, "00") {
		normalized = "+" + normalized[2:]
	}
	if err := ValidatePhone(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidatePhone checks that phone is already in E.164 form.
func ValidatePhone(phone string) error {
	if !e164Pattern.MatchString(phone) {
		return errors.Wrap(ErrValidation,
			"phone number must be in international format, e.g. +14155550123")
	}
	return nil
}
