////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package versioned stores versioned, timestamped objects in an ekv.KeyValue.
// It is the client's stand-in for browser local storage.
package versioned

import (
	"fmt"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

// PrefixSeparator separates the prefixes of a KV from the key.
const PrefixSeparator = "/"

// Upgrade converts an object from its version to the next one.
type Upgrade func(oldObject *Object) (*Object, error)

// UpgradeTable lists one Upgrade per version below CurrentVersion.
type UpgradeTable struct {
	CurrentVersion uint64
	Table          []Upgrade
}

// KV stores versioned data under an optional prefix.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV wraps an ekv store.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// Get loads the object stored under the key at exactly the given version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	result := &Object{}
	if err := v.data.Get(v.makeKey(key, version), result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAndUpgrade finds the newest stored version of the key at or below the
// table's current version and runs it through the upgrade table.
func (v *KV) GetAndUpgrade(key string, ut UpgradeTable) (*Object, error) {
	if uint64(len(ut.Table)) != ut.CurrentVersion {
		return nil, errors.Errorf("upgrade table for %s has %d entries "+
			"but current version is %d", key, len(ut.Table),
			ut.CurrentVersion)
	}

	var (
		result  *Object
		missing error
	)
	for version := int64(ut.CurrentVersion); version >= 0; version-- {
		obj, err := v.Get(key, uint64(version))
		if err == nil {
			result = obj
			break
		}
		if ekv.Exists(err) {
			return nil, errors.WithMessagef(err, "failed to load %s v%d",
				key, version)
		}
		missing = err
	}

	if result == nil {
		// Unwrapped so callers can test it with Exists.
		return nil, missing
	}

	for result.Version < ut.CurrentVersion {
		old := result.Version
		upgraded, err := ut.Table[old](result)
		if err != nil {
			return nil, errors.WithMessagef(err,
				"failed to upgrade %s from version %d", key, old)
		}
		if upgraded.Version <= old {
			return nil, errors.Errorf("upgrade of %s from version %d did "+
				"not advance the version", key, old)
		}
		jww.DEBUG.Printf("Upgraded %s from version %d to %d",
			key, old, upgraded.Version)
		result = upgraded
	}

	return result, nil
}

// Set stores the object under the key at the object's version.
func (v *KV) Set(key string, object *Object) error {
	return v.data.Set(v.makeKey(key, object.Version), object)
}

// Delete removes the key at the given version.
func (v *KV) Delete(key string, version uint64) error {
	fullKey := v.makeKey(key, version)
	jww.TRACE.Printf("Deleting %s", fullKey)
	return v.data.Delete(fullKey)
}

// Prefix returns a KV sharing the same store with an extra prefix.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		data:   v.data,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetPrefix returns the accumulated prefix.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// GetFullKey returns the key with all prefixes and the version applied.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

// Exists returns false if the error indicates the element doesn't exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}
