////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package switchboard

import (
	jww "github.com/spf13/jwalterweatherman"
)

// Listener hears changes it registered for.
type Listener interface {
	Hear(c Change)

	// Name is used for debug printing.
	Name() string
}

// ListenerFunc is a function that hears changes.
type ListenerFunc func(c Change)

// ListenerID is returned by registration and used to unregister.
type ListenerID struct {
	conversationID string
	kind           Kind
	listener       Listener
}

func (lid ListenerID) Name() string {
	return lid.listener.Name()
}

type funcListener struct {
	listener ListenerFunc
	name     string
}

func newFuncListener(listener ListenerFunc, name string) *funcListener {
	return &funcListener{listener: listener, name: name}
}

func (fl *funcListener) Hear(c Change) { fl.listener(c) }
func (fl *funcListener) Name() string  { return fl.name }

// chanListener forwards changes into a channel without blocking. A full
// channel drops the change.
type chanListener struct {
	listener chan Change
	name     string
}

func newChanListener(listener chan Change, name string) *chanListener {
	return &chanListener{listener: listener, name: name}
}

func (cl *chanListener) Hear(c Change) {
	select {
	case cl.listener <- c:
	default:
		jww.WARN.Printf("[SWITCHBOARD] channel listener %s is full, "+
			"dropping %s", cl.name, c)
	}
}

func (cl *chanListener) Name() string { return cl.name }
