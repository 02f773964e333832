////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package pin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gitlab.com/heartline/client/conversation"
)

type mockPinner struct {
	calls []string
	err   error

	// during runs while the request is "in flight"
	during func()
}

func (p *mockPinner) Pin(_ context.Context, id string) error {
	p.calls = append(p.calls, "pin:"+id)
	if p.during != nil {
		p.during()
	}
	return p.err
}

func (p *mockPinner) Unpin(_ context.Context, id string) error {
	p.calls = append(p.calls, "unpin:"+id)
	if p.during != nil {
		p.during()
	}
	return p.err
}

func testConv(id string, sec int64) conversation.Conversation {
	last := conversation.Message{
		ID:             id + "-m",
		ConversationID: id,
		SenderID:       "peer",
		Content:        conversation.TextContent{Body: "hello " + id},
		CreatedAt:      time.Unix(sec, 0).UTC(),
	}
	return conversation.Conversation{
		ID:          id,
		Title:       "Title " + id,
		Members:     []conversation.Member{{ID: "peer", Name: "Pat"}},
		LastMessage: &last,
		UnreadCount: int(sec),
		CreatedAt:   time.Unix(1, 0).UTC(),
	}
}

func convIDs(convs []conversation.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func mustJSON(t *testing.T, v interface{}) []byte {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func newLoaded(p Pinner, max int) *Manager {
	m := NewManager(p)
	m.Load(
		[]conversation.Conversation{testConv("P1", 5)},
		[]conversation.Conversation{testConv("A", 10), testConv("B", 30),
			testConv("C", 20)},
		max)
	return m
}

func TestManager_Pin(t *testing.T) {
	p := &mockPinner{}
	m := newLoaded(p, 3)
	require.Equal(t, []string{"B", "C", "A"}, convIDs(m.Unpinned()))

	require.NoError(t, m.Pin(context.Background(), "C"))
	require.Equal(t, []string{"pin:C"}, p.calls)

	pinned := m.Pinned()
	require.Equal(t, []string{"C", "P1"}, convIDs(pinned))
	require.Equal(t, []string{"B", "A"}, convIDs(m.Unpinned()))

	// The full object moved, not just its ID
	want := testConv("C", 20)
	want.Pinned = true
	require.Equal(t, want, pinned[0])
}

// A rejected pin leaves both collections exactly as they were, even if the
// UI saw the optimistic move in the meantime.
func TestManager_Pin_Rollback(t *testing.T) {
	p := &mockPinner{err: errors.New("server said no")}
	m := newLoaded(p, 3)

	beforePinned := mustJSON(t, m.Pinned())
	beforeUnpinned := mustJSON(t, m.Unpinned())

	p.during = func() {
		require.Equal(t, []string{"A", "P1"}, convIDs(m.Pinned()))
	}
	err := m.Pin(context.Background(), "A")
	require.Error(t, err)
	require.Contains(t, err.Error(), "server said no")

	require.Equal(t, beforePinned, mustJSON(t, m.Pinned()))
	require.Equal(t, beforeUnpinned, mustJSON(t, m.Unpinned()))
}

func TestManager_Unpin_Rollback(t *testing.T) {
	p := &mockPinner{err: errors.New("timeout")}
	m := newLoaded(p, 3)
	beforePinned, beforeUnpinned := m.Pinned(), m.Unpinned()

	p.during = func() {
		require.Empty(t, m.Pinned())
		require.Equal(t, []string{"B", "C", "A", "P1"},
			convIDs(m.Unpinned()))
	}
	require.Error(t, m.Unpin(context.Background(), "P1"))

	require.Equal(t, beforePinned, m.Pinned())
	require.Equal(t, beforeUnpinned, m.Unpinned())
}

// At the limit the pin is refused locally without a request.
func TestManager_Pin_LimitNoNetwork(t *testing.T) {
	p := &mockPinner{}
	m := newLoaded(p, 1)
	require.False(t, m.CanPin())

	err := m.Pin(context.Background(), "A")
	require.ErrorIs(t, err, ErrPinLimit)
	require.Empty(t, p.calls)
	require.Equal(t, []string{"P1"}, convIDs(m.Pinned()))
}

func TestManager_Pin_Invalid(t *testing.T) {
	p := &mockPinner{}
	m := newLoaded(p, 5)
	require.ErrorIs(t, m.Pin(context.Background(), "P1"), ErrAlreadyPinned)
	require.ErrorIs(t, m.Pin(context.Background(), "zz"), ErrNotFound)
	require.ErrorIs(t, m.Unpin(context.Background(), "A"), ErrNotPinned)
	require.ErrorIs(t, m.Unpin(context.Background(), "zz"), ErrNotFound)
	require.Empty(t, p.calls)
}

func TestManager_Unpin(t *testing.T) {
	p := &mockPinner{}
	m := newLoaded(p, 3)
	require.NoError(t, m.Unpin(context.Background(), "P1"))

	require.Empty(t, m.Pinned())
	unpinned := m.Unpinned()
	require.Equal(t, []string{"B", "C", "A", "P1"}, convIDs(unpinned))
	require.False(t, unpinned[3].Pinned)
}

func TestManager_UpdateRemove(t *testing.T) {
	m := newLoaded(&mockPinner{}, 2)

	fresh := testConv("A", 99)
	m.Update(fresh)
	require.Equal(t, []string{"A", "B", "C"}, convIDs(m.Unpinned()))

	p1 := testConv("P1", 100)
	p1.Title = "renamed"
	m.Update(p1)
	require.Equal(t, "renamed", m.Pinned()[0].Title)
	require.True(t, m.Pinned()[0].Pinned)

	newPinned := testConv("N", 1)
	newPinned.Pinned = true
	m.Update(newPinned)
	require.Equal(t, []string{"P1", "N"}, convIDs(m.Pinned()))

	m.Update(testConv("D", 2))
	require.Equal(t, []string{"A", "B", "C", "D"}, convIDs(m.Unpinned()))

	m.Remove("N")
	m.Remove("B")
	require.Equal(t, []string{"P1"}, convIDs(m.Pinned()))
	require.Equal(t, []string{"A", "C", "D"}, convIDs(m.Unpinned()))
	require.Equal(t, 2, m.Max())
}
