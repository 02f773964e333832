////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package messenger ties the conversation store, pins, wallet, push channel
// and local storage together behind user-level operations.
package messenger

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
	"go.uber.org/ratelimit"

	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/payments"
	"gitlab.com/heartline/client/pin"
	"gitlab.com/heartline/client/presence"
	"gitlab.com/heartline/client/push"
	"gitlab.com/heartline/client/stoppable"
	"gitlab.com/heartline/client/storage/drafts"
	"gitlab.com/heartline/client/storage/session"
	"gitlab.com/heartline/client/switchboard"
	"gitlab.com/heartline/client/unlock"
)

// Backend is the part of the REST API the messenger drives. *backend.Client
// implements it.
type Backend interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (backend.Session, error)
	Logout(ctx context.Context) error

	ListConversations(ctx context.Context) (backend.ConversationList, error)
	Messages(ctx context.Context, conversationID, before string,
		limit int) ([]conversation.Message, error)
	SendMessage(ctx context.Context, conversationID string,
		r backend.SendRequest) (conversation.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	React(ctx context.Context, conversationID, messageID, emoji string,
		add bool) error
	UploadImage(ctx context.Context, filename string,
		image io.Reader) (backend.ImageUpload, error)

	JoinGroup(ctx context.Context, groupID, passkey string) (
		conversation.Conversation, error)
	LeaveGroup(ctx context.Context, groupID string) error
	RespondInvitation(ctx context.Context, groupID string, accept bool) (
		*conversation.Conversation, error)

	Swipe(ctx context.Context, userID string, d backend.Direction) (
		backend.SwipeResult, error)

	Wallet(ctx context.Context) (backend.WalletInfo, error)
	SendGift(ctx context.Context, conversationID, giftID,
		clientRef string) (backend.GiftReceipt, error)

	pin.Pinner
	payments.Spender
	payments.CheckoutAPI
}

// Messenger is the client's view model. Every exported method is safe for
// concurrent use.
type Messenger struct {
	params   Params
	api      Backend
	sessions *session.Store
	drafts   *drafts.Store

	pins        *pin.Manager
	gate        *payments.Gate
	checkout    *payments.Checkout
	presence    *presence.Tracker
	unlocks     *unlock.Registry
	events      *event.Manager
	switchboard *switchboard.Switchboard
	typing      ratelimit.Limiter

	services *stoppable.Multi

	// store is replaced when a different user logs in.
	store *conversation.Store

	pushClient *push.Client
	pushStop   stoppable.Stoppable

	mux sync.RWMutex

	// logoutMux serialises logouts so a burst of authorization failures
	// tears the session down once.
	logoutMux sync.Mutex
}

// New builds a messenger. If sessions holds a usable session the messenger
// starts logged in as its user; call Refresh to load the conversation list.
func New(params Params, api Backend, sessions *session.Store,
	draftStore *drafts.Store) (*Messenger, error) {
	if api == nil || sessions == nil || draftStore == nil {
		return nil, errors.New("messenger needs a backend, a session " +
			"store and a draft store")
	}
	if params.TypingPerSecond <= 0 {
		params.TypingPerSecond = 1
	}

	m := &Messenger{
		params:      params,
		api:         api,
		sessions:    sessions,
		drafts:      draftStore,
		pins:        pin.NewManager(api),
		presence:    presence.NewTracker(params.TypingTimeout),
		events:      event.NewManager(params.EventQueueSize),
		switchboard: switchboard.New(),
		typing:      ratelimit.New(params.TypingPerSecond),
		services:    stoppable.NewMulti("Messenger"),
	}

	var myID string
	wallet := payments.Wallet{}
	if sess, err := sessions.Load(); err == nil && sessions.Valid() {
		myID = sess.UserID
		wallet.Premium = sess.Premium
		jww.INFO.Printf("Resuming session of %s", myID)
	}
	m.store = m.newStore(myID)

	m.gate = payments.NewGate(api, wallet, nil)
	m.gate.OnStateChange(m.onGateState)
	m.checkout = payments.NewCheckout(api, m.gate)
	m.presence.SetTypingCallback(m.onTypingChange)
	m.unlocks = unlock.NewRegistry(m.onUnlockExpired)

	m.services.Add(m.events.EventService())
	return m, nil
}

func (m *Messenger) newStore(myID string) *conversation.Store {
	s := conversation.NewStore(myID, netTime.Now)
	s.SetChangeCallback(func(conversationID string) {
		m.onStoreChange(s, conversationID)
	})
	return s
}

// Close stops the push channel, every timer and the event service.
func (m *Messenger) Close() error {
	m.stopPush()
	m.presence.Close()
	m.unlocks.Close()
	if err := m.services.Close(); err != nil {
		return err
	}
	return stoppable.WaitForStopped(m.services, 5*time.Second)
}

////////////////////////////////////////////////////////////////////////////////
// Accessors                                                                  //
////////////////////////////////////////////////////////////////////////////////

func (m *Messenger) conversations() *conversation.Store {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.store
}

// MyID returns the logged-in user's ID, or "" when logged out.
func (m *Messenger) MyID() string {
	return m.conversations().MyID()
}

// LoggedIn reports whether a usable session is stored.
func (m *Messenger) LoggedIn() bool {
	return m.sessions.Valid()
}

// Conversations returns the conversation list, most recent activity first.
func (m *Messenger) Conversations() []conversation.Conversation {
	return m.conversations().Conversations()
}

func (m *Messenger) Conversation(conversationID string) (
	conversation.Conversation, bool) {
	return m.conversations().Conversation(conversationID)
}

// Messages returns a conversation's loaded thread, oldest first.
func (m *Messenger) Messages(conversationID string) []conversation.Message {
	return m.conversations().Messages(conversationID)
}

func (m *Messenger) TotalUnread() int {
	return m.conversations().TotalUnread()
}

// Pinned and Unpinned are the two sections of the conversation list.
func (m *Messenger) Pinned() []conversation.Conversation {
	return m.pins.Pinned()
}

func (m *Messenger) Unpinned() []conversation.Conversation {
	return m.pins.Unpinned()
}

func (m *Messenger) CanPin() bool {
	return m.pins.CanPin()
}

func (m *Messenger) Wallet() payments.Wallet {
	return m.gate.Wallet()
}

// Gate exposes the gated-action state machine for UIs that render it.
func (m *Messenger) Gate() *payments.Gate {
	return m.gate
}

// Checkout runs coin purchases and premium subscriptions.
func (m *Messenger) Checkout() *payments.Checkout {
	return m.checkout
}

// Typing lists the users typing in a conversation.
func (m *Messenger) Typing(conversationID string) []string {
	return m.presence.Typing(conversationID)
}

func (m *Messenger) Presence(userID string) (presence.Status, bool) {
	return m.presence.Presence(userID)
}

func (m *Messenger) IsUnlocked(photoID string) bool {
	return m.unlocks.IsUnlocked(photoID)
}

// Switchboard is where UIs register for view-model changes.
func (m *Messenger) Switchboard() *switchboard.Switchboard {
	return m.switchboard
}

// Events is where UIs register for user notifications.
func (m *Messenger) Events() *event.Manager {
	return m.events
}

////////////////////////////////////////////////////////////////////////////////
// Change fan-out                                                             //
////////////////////////////////////////////////////////////////////////////////

// onStoreChange keeps the pin sections in step with the store and tells
// listeners. Callbacks from a store that has since been replaced are dropped.
func (m *Messenger) onStoreChange(s *conversation.Store,
	conversationID string) {
	if m.conversations() != s {
		return
	}
	if conversationID == "" {
		m.switchboard.Speak(switchboard.Change{
			Kind: switchboard.ConversationChanged})
		return
	}

	c, ok := s.Conversation(conversationID)
	if !ok {
		m.pins.Remove(conversationID)
		m.presence.ClearConversation(conversationID)
		m.switchboard.Speak(switchboard.Change{
			Kind: switchboard.ConversationRemoved, ConversationID: conversationID})
		m.switchboard.UnregisterConversation(conversationID)
		return
	}
	m.pins.Update(c)
	m.switchboard.Speak(switchboard.Change{
		Kind: switchboard.ConversationChanged, ConversationID: conversationID})
}

func (m *Messenger) onTypingChange(conversationID string, _ []string) {
	m.switchboard.Speak(switchboard.Change{
		Kind: switchboard.TypingChanged, ConversationID: conversationID})
}

func (m *Messenger) onUnlockExpired(photoID string) {
	jww.DEBUG.Printf("Unlock of photo %s expired", photoID)
	m.switchboard.Speak(switchboard.Change{Kind: switchboard.UnlockChanged})
}

func (m *Messenger) onGateState(action payments.Action, from,
	to payments.State) {
	jww.TRACE.Printf("[PAY] %s: %s -> %s", action, from, to)
	if to == payments.Spent {
		m.switchboard.Speak(switchboard.Change{Kind: switchboard.WalletChanged})
	}
}

func (m *Messenger) messagesChanged(conversationID string) {
	m.switchboard.Speak(switchboard.Change{
		Kind: switchboard.MessagesChanged, ConversationID: conversationID})
}
