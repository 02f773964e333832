////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Multi groups stoppables so a whole view can be torn down at once.
type Multi struct {
	name       string
	stoppables []Stoppable
	status     Status
	mux        sync.RWMutex
	once       sync.Once
}

// NewMulti returns an empty running Multi.
func NewMulti(name string) *Multi {
	return &Multi{name: name, status: Running}
}

// Add adds a child. Children added after Close are closed immediately.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	m.stoppables = append(m.stoppables, s)
	m.mux.Unlock()

	if m.GetStatus() != Running {
		jww.WARN.Printf("Stoppable %q added to multi %q after close.",
			s.Name(), m.name)
		_ = s.Close()
	}
}

// Name returns the name of the Multi and its children.
func (m *Multi) Name() string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	names := make([]string, len(m.stoppables))
	for i, s := range m.stoppables {
		names[i] = s.Name()
	}
	return m.name + ": {" + strings.Join(names, ", ") + "}"
}

// GetStatus reports Stopped once every child has stopped, including children
// that stopped on their own before the Multi was closed.
func (m *Multi) GetStatus() Status {
	status := Status(atomic.LoadUint32((*uint32)(&m.status)))
	if status == Stopped {
		return status
	}

	m.mux.RLock()
	defer m.mux.RUnlock()
	if len(m.stoppables) == 0 {
		return status
	}
	for _, s := range m.stoppables {
		if !s.IsStopped() {
			return status
		}
	}
	atomic.StoreUint32((*uint32)(&m.status), uint32(Stopped))
	return Stopped
}

func (m *Multi) IsRunning() bool  { return m.GetStatus() == Running }
func (m *Multi) IsStopping() bool { return m.GetStatus() == Stopping }
func (m *Multi) IsStopped() bool  { return m.GetStatus() == Stopped }

// Close closes every child still running. Children that already began
// stopping on their own are left alone. Errors from children are joined
// into one.
func (m *Multi) Close() error {
	var failed []string
	m.once.Do(func() {
		atomic.StoreUint32((*uint32)(&m.status), uint32(Stopping))

		m.mux.RLock()
		children := append([]Stoppable(nil), m.stoppables...)
		m.mux.RUnlock()

		for _, s := range children {
			if !s.IsRunning() {
				continue
			}
			if err := s.Close(); err != nil {
				failed = append(failed, describe(s))
			}
		}
	})

	if len(failed) > 0 {
		return errors.Errorf("multi stoppable %q failed to close: %s",
			m.name, strings.Join(failed, ", "))
	}
	return nil
}
