////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"fmt"
	"time"

	"gitlab.com/xx_network/primitives/netTime"
)

// Object is the unit stored in a KV.
type Object struct {
	// Used to determine version upgrades, if any
	Version uint64

	// Set when this object is written
	Timestamp time.Time

	// Serialized version of original object
	Data []byte
}

// NewObject stamps data with the version and the current time.
func NewObject(version uint64, data []byte) *Object {
	return &Object{
		Version:   version,
		Timestamp: netTime.Now(),
		Data:      data,
	}
}

// Unmarshal implements ekv.Unmarshaler.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}

// Marshal implements ekv.Marshaler.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	// Every field is a plain type, so this cannot fail
	if err != nil {
		panic(fmt.Sprintf("Could not marshal: %+v", v))
	}
	return d
}
