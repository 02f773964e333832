////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error message.
const toStoppingErr = "failed to set the status of single stoppable %q to " +
	"stopping when status is %s instead of %s"

// Single stops one goroutine through its quit channel. The goroutine must
// call ToStopped once it has returned from its loop.
type Single struct {
	name   string
	quit   chan struct{}
	status Status
	once   sync.Once
}

// NewSingle returns a running Single.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}),
		status: Running,
	}
}

// Name returns the name of the Single.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the current status.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32((*uint32)(&s.status)))
}

func (s *Single) IsRunning() bool  { return s.GetStatus() == Running }
func (s *Single) IsStopping() bool { return s.GetStatus() == Stopping }
func (s *Single) IsStopped() bool  { return s.GetStatus() == Stopped }

// Quit is closed when the Single is asked to stop.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// ToStopped marks the Single stopped. Panics if Close was never called, since
// that means the goroutine exited on its own while still marked as running.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf("Failed to set the status of single stoppable %q "+
			"to stopped when status is %s instead of %s.",
			s.name, s.GetStatus(), Stopping)
	}
	jww.DEBUG.Printf("Single stoppable %q stopped.", s.name)
}

// Close signals the goroutine to stop. Closing twice returns an error on the
// second call.
func (s *Single) Close() error {
	err := errors.Errorf(toStoppingErr, s.name, s.GetStatus(), Running)
	s.once.Do(func() {
		if !atomic.CompareAndSwapUint32(
			(*uint32)(&s.status), uint32(Running), uint32(Stopping)) {
			return
		}
		err = nil
		jww.TRACE.Printf("Closing quit channel of single stoppable %q.",
			s.name)
		close(s.quit)
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}
	return err
}
