////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/heartline/client/auth"
	"gitlab.com/heartline/client/backend"
	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/emoji"
	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/payments"
	"gitlab.com/heartline/client/pin"
	"gitlab.com/heartline/client/push"
	"gitlab.com/heartline/client/switchboard"
)

func TestParseParameters(t *testing.T) {
	p, err := ParseParameters("")
	require.NoError(t, err)
	require.Equal(t, GetDefaultParams(), p)

	p, err = ParseParameters(`{"PageSize": 10}`)
	require.NoError(t, err)
	require.Equal(t, 10, p.PageSize)
	require.Equal(t, GetDefaultParams().UnlockDuration, p.UnlockDuration)

	_, err = ParseParameters(`{`)
	require.Error(t, err)
}

func TestMessenger_LoginAndRefresh(t *testing.T) {
	api := &fakeBackend{
		list: backend.ConversationList{
			Pinned:        []conversation.Conversation{conv("a", 1)},
			Conversations: []conversation.Conversation{conv("b", 2), conv("c", 3)},
			MaxPinned:     3,
		},
		wallet: backend.WalletInfo{
			Wallet: payments.Wallet{Balance: 40},
			Costs: payments.CostTable{
				payments.UnlockPhoto: {Coins: 7},
			},
		},
	}
	m, _ := newTestMessenger(t, api)
	ctx := context.Background()

	require.False(t, m.LoggedIn())
	require.Equal(t, ErrLoggedOut, m.Refresh(ctx))

	_, err := m.Login(ctx, "+15551234567", "12a456")
	require.True(t, errors.Is(err, auth.ErrValidation))
	require.Zero(t, api.called("VerifyOTP"))

	sess, err := m.Login(ctx, "0015551234567", "123456")
	require.NoError(t, err)
	require.Equal(t, "me", sess.UserID)
	require.Equal(t, "+15551234567", sess.Phone)
	require.True(t, m.LoggedIn())
	require.Equal(t, "me", m.MyID())

	require.NoError(t, m.Refresh(ctx))
	require.Len(t, m.Conversations(), 3)
	require.Equal(t, "c", m.Conversations()[0].ID)

	pinned := m.Pinned()
	require.Len(t, pinned, 1)
	require.Equal(t, "a", pinned[0].ID)
	require.Len(t, m.Unpinned(), 2)
	require.True(t, m.CanPin())

	require.Equal(t, int64(40), m.Wallet().Balance)
	d, err := m.Gate().Check(payments.UnlockPhoto)
	require.NoError(t, err)
	require.Equal(t, int64(7), d.Cost.Coins)
}

func TestMessenger_Logout(t *testing.T) {
	api := &fakeBackend{list: backend.ConversationList{
		Conversations: []conversation.Conversation{conv("a", 1)},
		MaxPinned:     3,
	}}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	require.NoError(t, m.Refresh(context.Background()))
	require.Len(t, m.Conversations(), 1)

	require.NoError(t, m.Logout(context.Background()))
	require.Equal(t, 1, api.called("Logout"))
	require.False(t, m.LoggedIn())
	require.Empty(t, m.Conversations())
	require.Empty(t, m.Unpinned())
	require.Empty(t, m.MyID())
}

func TestMessenger_ForcedLogout(t *testing.T) {
	api := &fakeBackend{list: backend.ConversationList{MaxPinned: 3}}
	m, _ := newTestMessenger(t, api)
	events := collectEvents(t, m)
	sessionChanges := make(chan switchboard.Change, 8)
	m.Switchboard().RegisterChannel("session", switchboard.AnyConversation,
		switchboard.SessionChanged, sessionChanges)
	login(t, m)
	<-sessionChanges

	api.listErr = &backend.Error{
		Class:   backend.ClassAuthorization,
		Status:  http.StatusUnauthorized,
		Message: "session expired",
	}
	err := m.Refresh(context.Background())
	require.True(t, backend.IsAuthorization(err))
	require.False(t, m.LoggedIn())
	require.Empty(t, m.Conversations())

	e := waitForEvent(t, events, event.ForcedLogout)
	require.Equal(t, event.Session, e.Category)
	require.Equal(t, event.Alert, e.Priority)
	select {
	case <-sessionChanges:
	case <-time.After(time.Second):
		t.Fatal("no session change after forced logout")
	}
}

func TestMessenger_SendText(t *testing.T) {
	api := &fakeBackend{list: backend.ConversationList{
		Conversations: []conversation.Conversation{conv("a", 1)},
		MaxPinned:     3,
	}}
	m, draftStore := newTestMessenger(t, api)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))
	require.NoError(t, m.SaveDraft("a", "hello"))

	_, err := m.SendText(ctx, "a", "   ")
	require.Equal(t, ErrEmptyMessage, err)

	msg, err := m.SendText(ctx, "a", "hello")
	require.NoError(t, err)
	require.Equal(t, "srv-temp-1", msg.ID)
	require.Equal(t, "temp-1", api.sent[0].ClientRef)

	thread := m.Messages("a")
	require.Len(t, thread, 1)
	require.Equal(t, "srv-temp-1", thread[0].ID)
	require.False(t, thread[0].Pending)

	c, ok := m.Conversation("a")
	require.True(t, ok)
	require.Equal(t, "srv-temp-1", c.LastMessage.ID)

	_, found, err := draftStore.Get("a")
	require.NoError(t, err)
	require.False(t, found)

	// The echo of our own send is not a second message.
	m.OnMessageCreated(push.MessageCreated{Message: msg})
	require.Len(t, m.Messages("a"), 1)
	c, _ = m.Conversation("a")
	require.Zero(t, c.UnreadCount)
}

func TestMessenger_SendText_Failure(t *testing.T) {
	prev := conversation.Message{
		ID: "m0", ConversationID: "a", SenderID: "u-a",
		Content:   conversation.TextContent{Body: "hi"},
		CreatedAt: epoch,
	}
	a := conv("a", 0)
	a.LastMessage = &prev
	api := &fakeBackend{
		list:    backend.ConversationList{Conversations: []conversation.Conversation{a}, MaxPinned: 3},
		sendErr: &backend.Error{Class: backend.ClassTransient, Status: 503},
	}
	m, _ := newTestMessenger(t, api)
	events := collectEvents(t, m)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	_, err := m.SendText(ctx, "a", "are you there?")
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	require.Equal(t, "are you there?", sendErr.Draft)
	require.True(t, backend.IsTransient(err))

	// No retry, no leftover pending entry, previous last message restored.
	require.Equal(t, 1, api.called("SendMessage"))
	require.Empty(t, m.Messages("a"))
	c, _ := m.Conversation("a")
	require.Equal(t, "m0", c.LastMessage.ID)

	d, found, err := m.Draft("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "are you there?", d.Text)

	e := waitForEvent(t, events, event.SendFailed)
	require.Equal(t, event.Send, e.Category)
	require.True(t, m.LoggedIn())
}

func TestMessenger_Pin(t *testing.T) {
	api := &fakeBackend{list: backend.ConversationList{
		Pinned:        []conversation.Conversation{conv("a", 1)},
		Conversations: []conversation.Conversation{conv("b", 2), conv("c", 3)},
		MaxPinned:     2,
	}}
	m, _ := newTestMessenger(t, api)
	events := collectEvents(t, m)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	require.NoError(t, m.Pin(ctx, "b"))
	require.Equal(t, []string{"b", "a"}, ids(m.Pinned()))
	c, _ := m.Conversation("b")
	require.True(t, c.Pinned)

	// At the limit nothing is sent.
	err := m.Pin(ctx, "c")
	require.True(t, errors.Is(err, pin.ErrPinLimit))
	require.Equal(t, 1, api.called("Pin"))
	waitForEvent(t, events, event.PinLimitReached)

	// A refused unpin rolls back.
	api.pinErr = &backend.Error{Class: backend.ClassBusiness, Status: 409}
	require.Error(t, m.Unpin(ctx, "a"))
	require.Equal(t, []string{"b", "a"}, ids(m.Pinned()))
	require.Equal(t, []string{"c"}, ids(m.Unpinned()))
	waitForEvent(t, events, event.PinFailed)
}

func ids(convs []conversation.Conversation) []string {
	out := make([]string, len(convs))
	for i := range convs {
		out[i] = convs[i].ID
	}
	return out
}

func TestMessenger_SendGift(t *testing.T) {
	api := &fakeBackend{
		list:   backend.ConversationList{Conversations: []conversation.Conversation{conv("a", 1)}, MaxPinned: 3},
		wallet: backend.WalletInfo{Wallet: payments.Wallet{Balance: 15}},
		gift: backend.GiftReceipt{
			Message: conversation.Message{
				ID: "g1", SenderID: "me", CreatedAt: time.Now(),
				Content: conversation.GiftContent{GiftID: "rose", Name: "Rose", Coins: 10},
			},
			Wallet: payments.Wallet{Balance: 5},
		},
	}
	m, _ := newTestMessenger(t, api)
	events := collectEvents(t, m)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	ring := backend.Gift{ID: "ring", Name: "Ring", Coins: 100}
	_, err := m.SendGift(ctx, "a", ring)
	d, ok := payments.DecisionFromError(err)
	require.True(t, ok)
	require.Equal(t, payments.InsufficientFunds, d.Outcome)
	require.Equal(t, payments.PurchaseCoins, d.Remediation())
	require.Zero(t, api.called("SendGift"))
	require.Empty(t, m.Messages("a"))
	waitForEvent(t, events, event.InsufficientFunds)

	rose := backend.Gift{ID: "rose", Name: "Rose", Coins: 10}
	msg, err := m.SendGift(ctx, "a", rose)
	require.NoError(t, err)
	require.Equal(t, "g1", msg.ID)
	require.Equal(t, int64(5), m.Wallet().Balance)
	require.Len(t, m.Messages("a"), 1)
	require.Equal(t, payments.Idle, m.Gate().State())

	// A failed spend leaves the balance alone.
	api.giftErr = errors.New("gateway down")
	_, err = m.SendGift(ctx, "a", backend.Gift{ID: "pin", Coins: 1})
	require.Error(t, err)
	require.Equal(t, int64(5), m.Wallet().Balance)
	require.Len(t, m.Messages("a"), 1)
	waitForEvent(t, events, event.SpendFailed)
}

func TestMessenger_UnlockPhoto(t *testing.T) {
	api := &fakeBackend{
		list:   backend.ConversationList{MaxPinned: 3},
		wallet: backend.WalletInfo{Wallet: payments.Wallet{Balance: 20}},
		spent:  payments.Wallet{Balance: 15},
	}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	require.False(t, m.IsUnlocked("p1"))
	require.NoError(t, m.UnlockPhoto(ctx, "p1"))
	require.True(t, m.IsUnlocked("p1"))
	require.Equal(t, int64(15), m.Wallet().Balance)

	require.NoError(t, m.UnlockPhoto(ctx, "p1"))
	require.Equal(t, 1, api.called("Spend"))

	require.NoError(t, m.Logout(ctx))
	require.False(t, m.IsUnlocked("p1"))
}

func TestMessenger_Swipe(t *testing.T) {
	match := conv("new", 5)
	api := &fakeBackend{
		list:   backend.ConversationList{MaxPinned: 3},
		wallet: backend.WalletInfo{Wallet: payments.Wallet{Balance: 1}},
		swipe:  backend.SwipeResult{Matched: true, Conversation: &match},
	}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	_, err := m.Swipe(ctx, "u-9", backend.SuperLike)
	require.True(t, errors.Is(err, payments.ErrInsufficientFunds))
	require.Zero(t, api.called("Swipe"))

	res, err := m.Swipe(ctx, "u-9", backend.Like)
	require.NoError(t, err)
	require.True(t, res.Matched)
	_, ok := m.Conversation("new")
	require.True(t, ok)
}

// A paid super-like whose wallet fetch fails keeps the last balance the
// server reported rather than one computed locally.
func TestMessenger_SuperLike_WalletFetchFails(t *testing.T) {
	api := &fakeBackend{
		list:      backend.ConversationList{MaxPinned: 3},
		wallet:    backend.WalletInfo{Wallet: payments.Wallet{Balance: 10}},
		swipe:     backend.SwipeResult{},
		walletErr: errors.New("gateway timeout"),
		walletOK:  1,
	}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))
	require.EqualValues(t, 10, m.Wallet().Balance)

	res, err := m.Swipe(ctx, "u-9", backend.SuperLike)
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.Equal(t, 1, api.called("Swipe"))
	require.Equal(t, 2, api.called("Wallet"))
	require.EqualValues(t, 10, m.Wallet().Balance)
	require.Equal(t, payments.Idle, m.Gate().State())
}

func TestMessenger_Groups(t *testing.T) {
	group := conv("g", 4)
	group.Kind = conversation.Group
	api := &fakeBackend{
		list:   backend.ConversationList{MaxPinned: 3},
		joined: group,
	}
	m, _ := newTestMessenger(t, api)
	events := collectEvents(t, m)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	_, err := m.JoinGroup(ctx, "g", "a b")
	require.True(t, errors.Is(err, auth.ErrValidation))
	require.Zero(t, api.called("JoinGroup"))

	_, err = m.JoinGroup(ctx, "g", "secret")
	require.NoError(t, err)
	_, ok := m.Conversation("g")
	require.True(t, ok)
	require.Len(t, m.Unpinned(), 1)

	api.leaveErr = &backend.Error{Class: backend.ClassBusiness, Status: 400}
	require.Error(t, m.LeaveGroup(ctx, "g"))
	_, ok = m.Conversation("g")
	require.True(t, ok)
	waitForEvent(t, events, event.LeaveFailed)

	api.leaveErr = nil
	require.NoError(t, m.LeaveGroup(ctx, "g"))
	_, ok = m.Conversation("g")
	require.False(t, ok)
	require.Empty(t, m.Unpinned())
}

func TestMessenger_RespondInvitation(t *testing.T) {
	group := conv("g", 9)
	group.Kind = conversation.Group
	api := &fakeBackend{
		list: backend.ConversationList{
			Conversations: []conversation.Conversation{conv("a", 1)},
			MaxPinned:     3,
		},
		pages: map[string][]conversation.Message{"a": {
			{
				ID: "inv", ConversationID: "a", SenderID: "u-a",
				CreatedAt: epoch.Add(time.Hour),
				Content: conversation.InvitationContent{
					GroupID: "g", GroupName: "Hikers", InviterID: "u-a",
					Status: conversation.Pending,
				},
			},
			{
				ID: "txt", ConversationID: "a", SenderID: "u-a",
				CreatedAt: epoch.Add(2 * time.Hour),
				Content:   conversation.TextContent{Body: "join us"},
			},
		}},
		invited: &group,
	}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	thread, err := m.Open(ctx, "a")
	require.NoError(t, err)
	require.Len(t, thread, 2)

	err = m.RespondInvitation(ctx, "a", "txt", true)
	require.True(t, errors.Is(err, conversation.ErrNotInvitation))

	require.NoError(t, m.RespondInvitation(ctx, "a", "inv", true))
	inv := m.Messages("a")[0].Content.(conversation.InvitationContent)
	require.Equal(t, conversation.Accepted, inv.Status)
	_, ok := m.Conversation("g")
	require.True(t, ok)

	err = m.RespondInvitation(ctx, "a", "inv", false)
	require.True(t, errors.Is(err, conversation.ErrInvitationResolved))
	require.Equal(t, 1, api.called("RespondInvitation"))
}

func TestMessenger_React(t *testing.T) {
	api := &fakeBackend{
		list: backend.ConversationList{
			Conversations: []conversation.Conversation{conv("a", 1)},
			MaxPinned:     3,
		},
		pages: map[string][]conversation.Message{"a": {{
			ID: "m1", ConversationID: "a", SenderID: "u-a", CreatedAt: epoch,
			Content: conversation.TextContent{Body: "hey"},
		}}},
	}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))
	_, err := m.Open(ctx, "a")
	require.NoError(t, err)

	err = m.React(ctx, "a", "m1", "hello", true)
	require.True(t, errors.Is(err, emoji.ErrInvalidReaction))

	require.NoError(t, m.React(ctx, "a", "m1", "👍", true))
	require.Equal(t, []string{"me"}, m.Messages("a")[0].Reactions["👍"])

	api.reactErr = &backend.Error{Class: backend.ClassTransient, Status: 502}
	require.Error(t, m.React(ctx, "a", "m1", "😂", true))
	require.Empty(t, m.Messages("a")[0].Reactions["😂"])
}

func TestMessenger_PushEvents(t *testing.T) {
	a, b := conv("a", 1), conv("b", 2)
	a.Kind = conversation.Group
	api := &fakeBackend{list: backend.ConversationList{
		Pinned:        []conversation.Conversation{b},
		Conversations: []conversation.Conversation{a},
		MaxPinned:     3,
	}}
	m, _ := newTestMessenger(t, api)
	login(t, m)
	require.NoError(t, m.Refresh(context.Background()))

	m.OnTyping(push.Typing{ConversationID: "a", UserID: "u-a", Typing: true})
	m.OnTyping(push.Typing{ConversationID: "a", UserID: "me", Typing: true})
	require.Equal(t, []string{"u-a"}, m.Typing("a"))

	msg := conversation.Message{
		ID: "m1", ConversationID: "a", SenderID: "u-a",
		Content:   conversation.TextContent{Body: "hi"},
		CreatedAt: epoch.Add(time.Hour),
	}
	m.OnMessageCreated(push.MessageCreated{Message: msg})
	m.OnMessageCreated(push.MessageCreated{Message: msg})
	require.Len(t, m.Messages("a"), 1)
	require.Equal(t, 1, m.TotalUnread())
	require.Empty(t, m.Typing("a"))
	require.Equal(t, "a", m.Conversations()[0].ID)
	require.Equal(t, "a", m.Unpinned()[0].ID)

	m.OnPresence(push.Presence{UserID: "u-a", Online: true})
	st, ok := m.Presence("u-a")
	require.True(t, ok)
	require.True(t, st.Online)

	m.OnResourceUpdate(push.ResourceUpdate{
		ConversationID: "a",
		Patch:          json.RawMessage(`{"title":"Renamed"}`),
	})
	c, _ := m.Conversation("a")
	require.Equal(t, "Renamed", c.Title)
	require.Equal(t, conversation.Group, c.Kind)
	require.Equal(t, "Renamed", m.Unpinned()[0].Title)

	m.OnResourceUpdate(push.ResourceUpdate{
		ConversationID: "a",
		Patch: json.RawMessage(
			`[{"op":"replace","path":"/title","value":"Hikers"}]`),
	})
	c, _ = m.Conversation("a")
	require.Equal(t, "Hikers", c.Title)

	// A broken patch changes nothing.
	m.OnResourceUpdate(push.ResourceUpdate{
		ConversationID: "a",
		Patch:          json.RawMessage(`[{"op":"nope"}]`),
	})
	c, _ = m.Conversation("a")
	require.Equal(t, "Hikers", c.Title)

	m.OnMembershipChanged(push.MembershipChanged{
		ConversationID: "a", Left: []string{"me"}})
	_, ok = m.Conversation("a")
	require.False(t, ok)
	require.Empty(t, m.Unpinned())

	m.OnConversationRemoved(push.ConversationRemoved{ConversationID: "b"})
	require.Empty(t, m.Pinned())
	require.Empty(t, m.Conversations())
}

func TestMessenger_NotifyTypingWithoutPush(t *testing.T) {
	m, _ := newTestMessenger(t, &fakeBackend{})
	require.Equal(t, ErrPushNotRunning, m.NotifyTyping("a", true))
}
