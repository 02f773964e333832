////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/payments"
	"gitlab.com/heartline/client/storage/drafts"
	"gitlab.com/heartline/client/storage/session"
	"gitlab.com/heartline/client/storage/versioned"
)

// fakeBackend is an in-memory Backend. Every method records its name.
type fakeBackend struct {
	mux   sync.Mutex
	calls []string

	list    backend.ConversationList
	listErr error
	pages   map[string][]conversation.Message
	wallet  backend.WalletInfo

	// walletErr fails Wallet calls made after the first walletOK.
	walletErr error
	walletOK  int

	sendErr error
	sent    []backend.SendRequest

	pinErr   error
	reactErr error
	leaveErr error
	joined   conversation.Conversation
	invited  *conversation.Conversation

	gift    backend.GiftReceipt
	giftErr error
	spent   payments.Wallet
	swipe   backend.SwipeResult
}

func (f *fakeBackend) record(call string) {
	f.mux.Lock()
	f.calls = append(f.calls, call)
	f.mux.Unlock()
}

func (f *fakeBackend) called(call string) int {
	f.mux.Lock()
	defer f.mux.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) RequestOTP(context.Context, string) error {
	f.record("RequestOTP")
	return nil
}

func (f *fakeBackend) VerifyOTP(_ context.Context, phone, _ string) (
	backend.Session, error) {
	f.record("VerifyOTP")
	return backend.Session{
		Token: "opaque-token",
		User:  backend.Profile{ID: "me", Name: "Me", Phone: phone},
	}, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.record("Logout")
	return nil
}

func (f *fakeBackend) ListConversations(context.Context) (
	backend.ConversationList, error) {
	f.record("ListConversations")
	return f.list, f.listErr
}

func (f *fakeBackend) Messages(_ context.Context, conversationID, _ string,
	_ int) ([]conversation.Message, error) {
	f.record("Messages")
	return f.pages[conversationID], nil
}

func (f *fakeBackend) SendMessage(_ context.Context, conversationID string,
	r backend.SendRequest) (conversation.Message, error) {
	f.record("SendMessage")
	f.mux.Lock()
	f.sent = append(f.sent, r)
	f.mux.Unlock()
	if f.sendErr != nil {
		return conversation.Message{}, f.sendErr
	}
	return conversation.Message{
		ID:             "srv-" + r.ClientRef,
		ConversationID: conversationID,
		SenderID:       "me",
		Content:        r.Content,
		ClientRef:      r.ClientRef,
		CreatedAt:      time.Now(),
	}, nil
}

func (f *fakeBackend) MarkRead(context.Context, string) error {
	f.record("MarkRead")
	return nil
}

func (f *fakeBackend) React(context.Context, string, string, string,
	bool) error {
	f.record("React")
	return f.reactErr
}

func (f *fakeBackend) UploadImage(_ context.Context, _ string,
	image io.Reader) (backend.ImageUpload, error) {
	f.record("UploadImage")
	_, _ = io.Copy(io.Discard, image)
	return backend.ImageUpload{URL: "https://cdn.example/i.jpg"}, nil
}

func (f *fakeBackend) JoinGroup(context.Context, string, string) (
	conversation.Conversation, error) {
	f.record("JoinGroup")
	return f.joined, nil
}

func (f *fakeBackend) LeaveGroup(context.Context, string) error {
	f.record("LeaveGroup")
	return f.leaveErr
}

func (f *fakeBackend) RespondInvitation(context.Context, string, bool) (
	*conversation.Conversation, error) {
	f.record("RespondInvitation")
	return f.invited, nil
}

func (f *fakeBackend) Swipe(context.Context, string, backend.Direction) (
	backend.SwipeResult, error) {
	f.record("Swipe")
	return f.swipe, nil
}

func (f *fakeBackend) Wallet(context.Context) (backend.WalletInfo, error) {
	f.record("Wallet")
	if f.walletErr != nil && f.called("Wallet") > f.walletOK {
		return backend.WalletInfo{}, f.walletErr
	}
	return f.wallet, nil
}

func (f *fakeBackend) SendGift(_ context.Context, conversationID, giftID,
	clientRef string) (backend.GiftReceipt, error) {
	f.record("SendGift")
	if f.giftErr != nil {
		return backend.GiftReceipt{}, f.giftErr
	}
	r := f.gift
	r.Message.ConversationID = conversationID
	r.Message.ClientRef = clientRef
	return r, nil
}

func (f *fakeBackend) Pin(context.Context, string) error {
	f.record("Pin")
	return f.pinErr
}

func (f *fakeBackend) Unpin(context.Context, string) error {
	f.record("Unpin")
	return f.pinErr
}

func (f *fakeBackend) Spend(context.Context, payments.Action, string) (
	payments.Wallet, error) {
	f.record("Spend")
	return f.spent, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, packID string) (
	payments.Order, error) {
	f.record("CreateOrder")
	return payments.Order{ID: "order-1", PackID: packID}, nil
}

func (f *fakeBackend) VerifyPayment(context.Context, payments.Confirmation) (
	payments.Wallet, error) {
	f.record("VerifyPayment")
	return f.spent, nil
}

func (f *fakeBackend) Plans(context.Context) ([]payments.Plan, error) {
	return nil, nil
}

func (f *fakeBackend) Subscribe(context.Context, string) (payments.Wallet,
	error) {
	return payments.Wallet{Premium: true}, nil
}

var _ Backend = (*fakeBackend)(nil)

////////////////////////////////////////////////////////////////////////////////
// Fixtures                                                                   //
////////////////////////////////////////////////////////////////////////////////

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestMessenger(t *testing.T, api Backend) (*Messenger, *drafts.Store) {
	kv := versioned.NewKV(ekv.MakeMemstore())
	sessions, err := session.NewOrLoad(kv)
	require.NoError(t, err)
	draftStore := drafts.NewStore(kv)
	m, err := New(GetDefaultParams(), api, sessions, draftStore)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, draftStore
}

func login(t *testing.T, m *Messenger) {
	_, err := m.Login(context.Background(), "+15551234567", "123456")
	require.NoError(t, err)
}

func conv(id string, minutes int) conversation.Conversation {
	return conversation.Conversation{
		ID:        id,
		Kind:      conversation.Match,
		Title:     "Chat " + id,
		Members:   []conversation.Member{{ID: "me"}, {ID: "u-" + id}},
		CreatedAt: epoch.Add(time.Duration(minutes) * time.Minute),
	}
}

func collectEvents(t *testing.T, m *Messenger) <-chan event.Event {
	ch := make(chan event.Event, 32)
	require.NoError(t, m.Events().RegisterEventCallback(t.Name(),
		func(e event.Event) { ch <- e }))
	return ch
}

func waitForEvent(t *testing.T, ch <-chan event.Event,
	evtType string) event.Event {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == evtType {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event reported", evtType)
			return event.Event{}
		}
	}
}
