////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
)

// Getting a key that was never stored fails with a not-exists error.
func TestKV_Get_Missing(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())
	obj, err := kv.Get("session", 0)
	require.Error(t, err)
	require.False(t, kv.Exists(err))
	require.Nil(t, obj)
}

func TestKV_SetGetDelete(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore()).Prefix("drafts")
	require.Equal(t, "drafts/", kv.GetPrefix())
	require.Equal(t, "drafts/conv-1_2", kv.GetFullKey("conv-1", 2))

	require.NoError(t, kv.Set("conv-1", NewObject(2, []byte("hey"))))

	obj, err := kv.Get("conv-1", 2)
	require.NoError(t, err)
	require.Equal(t, []byte("hey"), obj.Data)
	require.False(t, obj.Timestamp.IsZero())

	_, err = kv.Get("conv-1", 1)
	require.Error(t, err)

	require.NoError(t, kv.Delete("conv-1", 2))
	_, err = kv.Get("conv-1", 2)
	require.False(t, kv.Exists(err))
}

// Prefixed views share the store but not the keyspace.
func TestKV_Prefix_Isolation(t *testing.T) {
	root := NewKV(ekv.MakeMemstore())
	a, b := root.Prefix("a"), root.Prefix("b")
	require.NoError(t, a.Set("k", NewObject(0, []byte("a"))))

	_, err := b.Get("k", 0)
	require.Error(t, err)

	obj, err := root.Prefix("a").Get("k", 0)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), obj.Data)
}

func TestKV_GetAndUpgrade(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())
	require.NoError(t, kv.Set("session", NewObject(0, []byte("v0"))))

	ut := UpgradeTable{
		CurrentVersion: 1,
		Table: []Upgrade{func(old *Object) (*Object, error) {
			return NewObject(1, append(old.Data, []byte("->v1")...)), nil
		}},
	}
	obj, err := kv.GetAndUpgrade("session", ut)
	require.NoError(t, err)
	require.Equal(t, uint64(1), obj.Version)
	require.Equal(t, []byte("v0->v1"), obj.Data)

	// The current version wins when both exist
	require.NoError(t, kv.Set("session", NewObject(1, []byte("fresh"))))
	obj, err = kv.GetAndUpgrade("session", ut)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), obj.Data)
}

func TestKV_GetAndUpgrade_Errors(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	_, err := kv.GetAndUpgrade("x", UpgradeTable{CurrentVersion: 2})
	require.Error(t, err)

	_, err = kv.GetAndUpgrade("x", UpgradeTable{})
	require.Error(t, err)
	require.False(t, kv.Exists(err))

	require.NoError(t, kv.Set("x", NewObject(0, nil)))
	stuck := UpgradeTable{CurrentVersion: 1, Table: []Upgrade{
		func(old *Object) (*Object, error) { return old, nil }}}
	_, err = kv.GetAndUpgrade("x", stuck)
	require.Error(t, err)
}
