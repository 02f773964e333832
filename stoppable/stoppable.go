////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable tracks the lifecycle of the long-running goroutines and
// timers owned by a client view: the push reader, the event reporter and the
// expiry timers. Everything a view starts must be closed when it is torn down
// so that nothing mutates state afterwards.
package stoppable

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error message.
const waitErr = "timed out after %s waiting for %q to stop"

// Stoppable is implemented by anything that owns a goroutine or timer.
type Stoppable interface {
	// Close signals the stoppable to stop. It does not wait.
	Close() error
	GetStatus() Status
	IsRunning() bool
	IsStopping() bool
	IsStopped() bool
	Name() string
}

// Status is the lifecycle state of a Stoppable.
type Status uint32

const (
	Running Status = iota
	Stopping
	Stopped
)

// String prints a human-readable form of the Status for logging.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "INVALID STATUS: " + strconv.Itoa(int(s))
	}
}

// WaitForStopped polls the Stoppable until it reports Stopped or the timeout
// elapses.
func WaitForStopped(s Stoppable, timeout time.Duration) error {
	done := time.NewTimer(timeout)
	defer done.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for !s.IsStopped() {
		select {
		case <-done.C:
			err := errors.Errorf(waitErr, timeout, s.Name())
			jww.WARN.Print(err)
			return err
		case <-tick.C:
		}
	}
	return nil
}

func describe(s Stoppable) string {
	return fmt.Sprintf("%s (%s)", s.Name(), s.GetStatus())
}
