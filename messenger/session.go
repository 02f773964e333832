////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/heartline/client/auth"
	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/payments"
	"gitlab.com/heartline/client/storage/session"
	"gitlab.com/heartline/client/switchboard"
)

// ErrLoggedOut is returned by operations that need a session when there is
// none.
var ErrLoggedOut = errors.New("not logged in")

// RequestOTP validates the phone number and asks the backend to text a code
// to it. It returns the normalized number to pass to Login.
func (m *Messenger) RequestOTP(ctx context.Context, phone string) (
	string, error) {
	phone, err := auth.NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	if err = m.api.RequestOTP(ctx, phone); err != nil {
		return "", errors.WithMessage(err, "failed to request code")
	}
	return phone, nil
}

// Login exchanges a one-time code for a session, stores it and resets the
// view model for the user. A previous user's conversations are discarded.
func (m *Messenger) Login(ctx context.Context, phone, code string) (
	session.Session, error) {
	phone, err := auth.NormalizePhone(phone)
	if err != nil {
		return session.Session{}, err
	}
	if err = auth.ValidateOTP(code); err != nil {
		return session.Session{}, err
	}

	resp, err := m.api.VerifyOTP(ctx, phone, code)
	if err != nil {
		return session.Session{}, errors.WithMessage(err, "login failed")
	}

	sess := session.Session{
		Token:     resp.Token,
		UserID:    resp.User.ID,
		Name:      resp.User.Name,
		Phone:     resp.User.Phone,
		Premium:   resp.User.Premium,
		ExpiresAt: resp.ExpiresAt,
	}
	if sess.Phone == "" {
		sess.Phone = phone
	}
	if err = m.sessions.Save(sess); err != nil {
		return session.Session{}, err
	}
	sess, _ = m.sessions.Load()

	m.resetViewModel(sess.UserID)
	m.gate.Refresh(payments.Wallet{Premium: sess.Premium})

	jww.INFO.Printf("Logged in as %s", sess.UserID)
	m.switchboard.Speak(switchboard.Change{Kind: switchboard.SessionChanged})
	return sess, nil
}

// Logout invalidates the session on the server and clears local state. The
// local state is cleared even if the server call fails.
func (m *Messenger) Logout(ctx context.Context) error {
	if !m.LoggedIn() {
		return m.clearSession()
	}
	err := m.api.Logout(ctx)
	if err != nil && !backend.IsAuthorization(err) {
		jww.WARN.Printf("Server logout failed, clearing locally: %+v", err)
	}
	return m.clearSession()
}

// handle inspects an error from a backend call. Authorization failures end
// the session.
func (m *Messenger) handle(err error) error {
	if err != nil && backend.IsAuthorization(err) {
		m.forceLogout(err)
	}
	return err
}

func (m *Messenger) forceLogout(cause error) {
	m.logoutMux.Lock()
	defer m.logoutMux.Unlock()
	if _, err := m.sessions.Load(); err != nil {
		return
	}
	jww.WARN.Printf("Session rejected by backend, logging out: %v", cause)
	if err := m.clearSessionLocked(); err != nil {
		jww.ERROR.Printf("Failed to clear session: %+v", err)
	}
	m.events.Report(event.Alert, event.Session, event.ForcedLogout,
		cause.Error())
}

func (m *Messenger) clearSession() error {
	m.logoutMux.Lock()
	defer m.logoutMux.Unlock()
	return m.clearSessionLocked()
}

func (m *Messenger) clearSessionLocked() error {
	m.stopPush()
	err := m.sessions.Delete()
	m.resetViewModel("")
	m.gate.Refresh(payments.Wallet{})
	m.switchboard.Speak(switchboard.Change{Kind: switchboard.SessionChanged})
	return err
}

// resetViewModel drops everything shown for the previous user.
func (m *Messenger) resetViewModel(myID string) {
	m.mux.Lock()
	old := m.store
	m.store = m.newStore(myID)
	m.mux.Unlock()

	old.Clear()
	m.pins.Load(nil, nil, m.pins.Max())
	m.presence.Reset()
	m.unlocks.Reset()
	for _, o := range m.checkout.Open() {
		m.checkout.Cancel(o.ID)
	}
	m.switchboard.Speak(switchboard.Change{
		Kind: switchboard.ConversationChanged})
}
