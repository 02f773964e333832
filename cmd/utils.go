////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/messenger"
	"gitlab.com/heartline/client/storage/drafts"
	"gitlab.com/heartline/client/storage/session"
	"gitlab.com/heartline/client/storage/versioned"
)

// openMessenger opens the session storage and builds a messenger against
// the configured backend.
func openMessenger() (*messenger.Messenger, *backend.Client, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	fs, err := ekv.NewFilestore(c.Session, c.Password)
	if err != nil {
		return nil, nil, errors.WithMessagef(err,
			"failed to open session storage %s", c.Session)
	}
	kv := versioned.NewKV(fs)
	sessions, err := session.NewOrLoad(kv)
	if err != nil {
		return nil, nil, err
	}

	bp := backend.GetDefaultParams()
	bp.BaseURL = c.API
	if c.Timeout > 0 {
		bp.Timeout = c.Timeout
	}
	api, err := backend.NewClient(bp, sessions)
	if err != nil {
		return nil, nil, err
	}

	p, err := messenger.ParseParameters(c.Params)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid messenger parameters")
	}
	if c.Socket != "" {
		p.Push.URL = c.Socket
	}

	m, err := messenger.New(p, api, sessions, drafts.NewStore(kv))
	if err != nil {
		return nil, nil, err
	}
	jww.DEBUG.Printf("Opened session storage %s", c.Session)
	return m, api, nil
}

// requireLogin opens a messenger and fails if no session is stored.
func requireLogin() (*messenger.Messenger, *backend.Client, error) {
	m, api, err := openMessenger()
	if err != nil {
		return nil, nil, err
	}
	if !m.LoggedIn() {
		_ = m.Close()
		return nil, nil, errors.New("not logged in, run the login command " +
			"first")
	}
	return m, api, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
}

func describe(c conversation.Conversation) string {
	title := c.Title
	if title == "" {
		title = c.ID
	}
	out := title
	if c.Pinned {
		out = "* " + out
	}
	if c.UnreadCount > 0 {
		out += " (" + strconv.Itoa(c.UnreadCount) + " unread)"
	}
	if c.LastMessage != nil {
		out += ": " + c.LastMessage.Preview()
	}
	return out
}
