////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/storage/versioned"
)

var _ backend.TokenSource = (*Store)(nil)

func signedToken(t *testing.T, subject string, exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestStore_SaveLoad(t *testing.T) {
	kv := versioned.NewKV(ekv.MakeMemstore())
	s, err := NewOrLoad(kv)
	require.NoError(t, err)

	_, err = s.Load()
	require.Equal(t, ErrNoSession, err)
	token, err := s.Token()
	require.NoError(t, err)
	require.Empty(t, token)
	require.False(t, s.Valid())

	exp := time.Unix(2000000000, 0)
	jwtToken := signedToken(t, "user-1", exp)
	require.NoError(t, s.Save(Session{Token: jwtToken, Name: "Ana"}))

	reloaded, err := NewOrLoad(kv)
	require.NoError(t, err)
	sess, err := reloaded.Load()
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)
	require.Equal(t, "Ana", sess.Name)
	require.True(t, exp.Equal(sess.ExpiresAt))

	token, err = reloaded.Token()
	require.NoError(t, err)
	require.Equal(t, jwtToken, token)
}

func TestStore_Expiry(t *testing.T) {
	s, err := NewOrLoad(versioned.NewKV(ekv.MakeMemstore()))
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(Session{
		Token: signedToken(t, "u", now.Add(time.Minute))}))
	require.True(t, s.Valid())

	now = now.Add(time.Hour)
	require.False(t, s.Valid())

	// Opaque tokens never expire locally.
	require.NoError(t, s.Save(Session{Token: "opaque", UserID: "u"}))
	require.True(t, s.Valid())
}

func TestStore_Delete(t *testing.T) {
	kv := versioned.NewKV(ekv.MakeMemstore())
	s, err := NewOrLoad(kv)
	require.NoError(t, err)
	require.NoError(t, s.Delete())

	require.NoError(t, s.Save(Session{Token: "opaque", UserID: "u"}))
	require.NoError(t, s.Delete())
	_, err = s.Load()
	require.Equal(t, ErrNoSession, err)

	reloaded, err := NewOrLoad(kv)
	require.NoError(t, err)
	_, err = reloaded.Load()
	require.Equal(t, ErrNoSession, err)
}

func TestStore_UpgradeBareToken(t *testing.T) {
	kv := versioned.NewKV(ekv.MakeMemstore())
	token := signedToken(t, "legacy-user", time.Unix(2000000000, 0))
	require.NoError(t, kv.Prefix(sessionPrefix).Set(sessionKey,
		versioned.NewObject(0, []byte(token))))

	s, err := NewOrLoad(kv)
	require.NoError(t, err)
	sess, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, token, sess.Token)
	require.Equal(t, "legacy-user", sess.UserID)
}

func TestStore_SaveWithoutToken(t *testing.T) {
	s, err := NewOrLoad(versioned.NewKV(ekv.MakeMemstore()))
	require.NoError(t, err)
	require.Error(t, s.Save(Session{UserID: "u"}))
}
