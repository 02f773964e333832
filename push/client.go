////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package push is the client side of the backend's real-time socket. It
// decodes pushed events and hands them to a Handler one at a time.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/heartline/client/stoppable"
)

// Params configures the socket.
type Params struct {
	// URL is the socket endpoint, ws:// or wss://.
	URL string

	HandshakeTimeout time.Duration

	// PongWait is how long the connection may stay silent, including pongs,
	// before it is considered dead.
	PongWait time.Duration

	// PingPeriod must be less than PongWait.
	PingPeriod time.Duration

	WriteWait      time.Duration
	MaxMessageSize int64
}

func GetDefaultParams() Params {
	return Params{
		HandshakeTimeout: 10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       54 * time.Second,
		WriteWait:        10 * time.Second,
		MaxMessageSize:   64 << 10,
	}
}

// Client is one socket connection.
type Client struct {
	params  Params
	conn    *websocket.Conn
	handler Handler

	// writeMux serialises writers; gorilla allows one concurrent writer.
	writeMux sync.Mutex

	dead      chan struct{}
	closeOnce sync.Once
	listening bool
	mux       sync.Mutex
}

// Dial opens the socket, authenticating with token as a bearer header.
func Dial(ctx context.Context, p Params, token string, h Handler) (
	*Client, error) {
	if h == nil {
		return nil, errors.New("push client needs a handler")
	}
	if p.PingPeriod <= 0 || p.PingPeriod >= p.PongWait {
		return nil, errors.Errorf("ping period %s must be positive and "+
			"less than pong wait %s", p.PingPeriod, p.PongWait)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: p.HandshakeTimeout,
	}
	conn, resp, err := d.DialContext(ctx, p.URL, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "failed to open push socket "+
				"(status %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "failed to open push socket")
	}
	jww.INFO.Printf("[PUSH] connected to %s", p.URL)

	return &Client{
		params:  p,
		conn:    conn,
		handler: h,
		dead:    make(chan struct{}),
	}, nil
}

// Listen starts the reader and keepalive goroutines. Closing the returned
// stoppable closes the socket. It may only be called once.
func (c *Client) Listen() (stoppable.Stoppable, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.listening {
		return nil, errors.New("push client is already listening")
	}
	c.listening = true

	reader := stoppable.NewSingle("PushReader")
	pinger := stoppable.NewSingle("PushPinger")
	multi := stoppable.NewMulti("Push")
	multi.Add(reader)
	multi.Add(pinger)

	go c.read(reader)
	go c.keepalive(pinger)
	return multi, nil
}

// Close closes a client that was never started with Listen. A listening
// client is closed through the stoppable Listen returned.
func (c *Client) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.listening {
		return errors.New("push client is listening, close its stoppable")
	}
	c.shutdown(true)
	return nil
}

// Emit sends a client event such as typing.
func (c *Client) Emit(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s event", event)
	}
	msg, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s event", event)
	}

	select {
	case <-c.dead:
		return errors.Errorf("cannot send %s: push socket is closed", event)
	default:
	}

	c.writeMux.Lock()
	defer c.writeMux.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.params.WriteWait))
	return errors.Wrapf(c.conn.WriteMessage(websocket.TextMessage, msg),
		"failed to send %s event", event)
}

// SendTyping tells the other members whether the user is typing.
func (c *Client) SendTyping(conversationID string, typing bool) error {
	return c.Emit(EventTyping, Typing{
		ConversationID: conversationID,
		Typing:         typing,
	})
}

func (c *Client) read(stop *stoppable.Single) {
	go func() {
		select {
		case <-stop.Quit():
			c.shutdown(true)
		case <-c.dead:
		}
	}()

	c.conn.SetReadLimit(c.params.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.params.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.params.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.finishRead(stop, err)
			return
		}

		var env envelope
		if err = json.Unmarshal(data, &env); err != nil {
			jww.WARN.Printf("[PUSH] dropping undecodable message: %+v", err)
			continue
		}
		if err = dispatch(c.handler, env); err != nil {
			if errors.Is(err, errUnknownEvent) {
				jww.DEBUG.Printf("[PUSH] %s", err)
			} else {
				jww.WARN.Printf("[PUSH] %+v", err)
			}
		}
	}
}

func (c *Client) finishRead(stop *stoppable.Single, err error) {
	requested := false
	select {
	case <-stop.Quit():
		requested = true
	default:
	}

	c.shutdown(false)
	if !requested {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
			websocket.CloseNormalClosure) {
			jww.WARN.Printf("[PUSH] socket dropped: %+v", err)
		} else {
			jww.INFO.Printf("[PUSH] socket closed: %v", err)
		}
		c.handler.OnDisconnect(err)
		_ = stop.Close()
	}
	stop.ToStopped()
}

func (c *Client) keepalive(stop *stoppable.Single) {
	ticker := time.NewTicker(c.params.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop.Quit():
			stop.ToStopped()
			return
		case <-c.dead:
			if stop.IsRunning() {
				_ = stop.Close()
			}
			stop.ToStopped()
			return
		case <-ticker.C:
			c.writeMux.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(c.params.WriteWait))
			c.writeMux.Unlock()
			if err != nil {
				jww.DEBUG.Printf("[PUSH] ping failed: %v", err)
			}
		}
	}
}

// shutdown closes the connection once. A requested shutdown says goodbye
// first.
func (c *Client) shutdown(requested bool) {
	c.closeOnce.Do(func() {
		if requested {
			c.writeMux.Lock()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.params.WriteWait))
			c.writeMux.Unlock()
		}
		close(c.dead)
		if err := c.conn.Close(); err != nil {
			jww.DEBUG.Printf("[PUSH] close: %v", err)
		}
	})
}
