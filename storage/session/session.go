////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package session persists the logged-in user's token.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/heartline/client/storage/versioned"
)

// Storage constants
const (
	sessionPrefix         = "session"
	sessionKey            = "current"
	currentSessionVersion = 1
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// Version 0 stored the bare token.
var upgradeTable = versioned.UpgradeTable{
	CurrentVersion: currentSessionVersion,
	Table: []versioned.Upgrade{
		func(old *versioned.Object) (*versioned.Object, error) {
			s := Session{Token: string(old.Data)}
			s.fillFromToken()
			data, err := json.Marshal(&s)
			if err != nil {
				return nil, err
			}
			return versioned.NewObject(1, data), nil
		},
	},
}

// Session is a stored login.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Premium   bool      `json:"premium,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// fillFromToken reads the subject and expiry out of a JWT without checking
// its signature; only the backend can verify it. Opaque tokens are left
// alone.
func (s *Session) fillFromToken() {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims)
	if err != nil {
		jww.TRACE.Printf("[SESSION] token is not a JWT: %v", err)
		return
	}
	if s.UserID == "" {
		s.UserID = claims.Subject
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
}

// Expired reports whether the session has a known expiry in the past.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store keeps the current session in memory and in the KV.
type Store struct {
	kv      *versioned.KV
	current *Session
	now     func() time.Time
	mux     sync.RWMutex
}

// NewOrLoad loads a stored session if one exists. A missing session is not
// an error.
func NewOrLoad(kv *versioned.KV) (*Store, error) {
	s := &Store{
		kv:  kv.Prefix(sessionPrefix),
		now: netTime.Now,
	}

	obj, err := s.kv.GetAndUpgrade(sessionKey, upgradeTable)
	if err != nil {
		if !s.kv.Exists(err) {
			return s, nil
		}
		return nil, errors.WithMessage(err, "failed to load session")
	}

	loaded := &Session{}
	if err = json.Unmarshal(obj.Data, loaded); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored session")
	}
	s.current = loaded
	jww.DEBUG.Printf("[SESSION] loaded session for %s", loaded.UserID)
	return s, nil
}

// Save stores a new session, replacing any old one.
func (s *Store) Save(sess Session) error {
	if sess.Token == "" {
		return errors.New("cannot save a session without a token")
	}
	sess.fillFromToken()

	data, err := json.Marshal(&sess)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	err = s.kv.Set(sessionKey,
		versioned.NewObject(currentSessionVersion, data))
	if err != nil {
		return errors.WithMessage(err, "failed to store session")
	}
	s.current = &sess
	return nil
}

// Load returns the current session, or ErrNoSession.
func (s *Store) Load() (Session, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if s.current == nil {
		return Session{}, ErrNoSession
	}
	return *s.current, nil
}

// Valid reports whether a session exists and has not expired.
func (s *Store) Valid() bool {
	sess, err := s.Load()
	return err == nil && !sess.Expired(s.now())
}

// Delete forgets the session. Deleting when logged out is not an error.
func (s *Store) Delete() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.current = nil
	for v := uint64(0); v <= currentSessionVersion; v++ {
		err := s.kv.Delete(sessionKey, v)
		if err != nil && s.kv.Exists(err) {
			return errors.WithMessage(err, "failed to delete session")
		}
	}
	return nil
}

// Token returns the bearer token, or an empty string when logged out.
func (s *Store) Token() (string, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if s.current == nil {
		return "", nil
	}
	return s.current.Token, nil
}
