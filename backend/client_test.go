////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/heartline/client/conversation"
	"gitlab.com/heartline/client/payments"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token() (string, error) {
	return "", errors.New("storage unavailable")
}

func writeEnvelope(w http.ResponseWriter, status int, env interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func ok(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"success": true, "data": data})
}

func newTestClient(t *testing.T, r http.Handler, tokens TokenSource) *Client {
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	p := GetDefaultParams()
	p.BaseURL = srv.URL + "/api/v1"
	c, err := NewClient(p, tokens)
	require.NoError(t, err)
	return c
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient(GetDefaultParams(), nil)
	require.Error(t, err)

	p := GetDefaultParams()
	p.BaseURL = "ftp://example.com"
	_, err = NewClient(p, nil)
	require.Error(t, err)
}

func TestClient_ListConversations(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{
			"maxPinned":3,
			"pinned":[{"id":"c1","kind":"group","title":"Hikers",
				"createdAt":"2024-01-01T00:00:00Z"}],
			"conversations":[{"id":"c2","kind":"private","title":"Sam",
				"unreadCount":2,"createdAt":"2024-01-02T00:00:00Z",
				"lastMessage":{"id":"m1","conversationId":"c2","senderId":"u2",
					"type":"gift","content":{"giftId":"g1","name":"Rose","coins":5},
					"createdAt":"2024-01-03T00:00:00Z"}}]}}`)
	})
	c := newTestClient(t, r, staticToken("tok"))

	l, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, l.MaxPinned)

	all := l.All()
	require.Len(t, all, 2)
	require.True(t, all[0].Pinned)
	require.Equal(t, conversation.Group, all[0].Kind)
	require.False(t, all[1].Pinned)
	require.Equal(t, conversation.Match, all[1].Kind)
	require.Equal(t, 2, all[1].UnreadCount)
	require.Equal(t, conversation.GiftContent{GiftID: "g1", Name: "Rose",
		Coins: 5}, all[1].LastMessage.Content)
}

func TestClient_SendMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/conversations/{id}/messages",
		func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Type      string `json:"type"`
				Content   struct{ Body string }
				ClientRef string `json:"clientRef"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "text", body.Type)
			require.Equal(t, "hi", body.Content.Body)

			ok(w, map[string]interface{}{
				"id":             "m9",
				"conversationId": chi.URLParam(r, "id"),
				"senderId":       "me",
				"clientRef":      body.ClientRef,
				"type":           "text",
				"content":        map[string]string{"body": "hi"},
				"createdAt":      time.Unix(100, 0).UTC(),
			})
		})
	c := newTestClient(t, r, staticToken("tok"))

	m, err := c.SendMessage(context.Background(), "c1", SendRequest{
		Content:   conversation.TextContent{Body: "hi"},
		ClientRef: "temp-1",
	})
	require.NoError(t, err)
	require.Equal(t, "m9", m.ID)
	require.Equal(t, "c1", m.ConversationID)
	require.Equal(t, "temp-1", m.ClientRef)
}

func TestClient_ErrorClasses(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/unauthorized", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false, "message": "login required"})
	})
	r.Get("/api/v1/expired", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "message": "Session expired, please log in"})
	})
	r.Get("/api/v1/coins", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusPaymentRequired, map[string]interface{}{
			"success": false, "code": CodeInsufficientCoins,
			"message": "not enough coins"})
	})
	r.Get("/api/v1/soft", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"success": false, "code": CodePinLimitReached})
	})
	r.Get("/api/v1/down", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusBadGateway, map[string]interface{}{
			"success": false})
	})
	r.Get("/api/v1/garbage", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	})
	c := newTestClient(t, r, nil)

	get := func(path string) error {
		return c.call(context.Background(), http.MethodGet, path, nil, nil, nil)
	}

	err := get("/unauthorized")
	require.True(t, IsAuthorization(err))
	require.False(t, IsBusiness(err))

	require.True(t, IsAuthorization(get("/expired")))

	err = get("/coins")
	require.True(t, IsBusiness(err))
	require.True(t, HasCode(err, CodeInsufficientCoins))
	require.Contains(t, err.Error(), "not enough coins")

	require.True(t, HasCode(get("/soft"), CodePinLimitReached))
	require.True(t, IsTransient(get("/down")))
	require.True(t, IsTransient(get("/garbage")))

	// Unknown route: chi's plain text 404 is a business error, not a crash.
	err = get("/missing")
	require.True(t, IsBusiness(err))
	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, http.StatusNotFound, e.Status)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	p := GetDefaultParams()
	p.BaseURL = srv.URL
	srv.Close()
	c, err := NewClient(p, nil)
	require.NoError(t, err)

	err = c.Pin(context.Background(), "c1")
	require.True(t, IsTransient(err))
}

func TestClient_TokenError(t *testing.T) {
	called := false
	r := chi.NewRouter()
	r.Post("/api/v1/conversations/{id}/pin", func(http.ResponseWriter, *http.Request) {
		called = true
	})
	c := newTestClient(t, r, failingToken{})

	err := c.Pin(context.Background(), "c1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage unavailable")
	require.False(t, called)
}

func TestClient_Spend(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/wallet/spend", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "unlock_photo", body["action"])
		require.Equal(t, "p1", body["reference"])
		ok(w, map[string]interface{}{"balance": 4, "premium": false})
	})
	c := newTestClient(t, r, staticToken("tok"))

	var spender payments.Spender = c
	w, err := spender.Spend(context.Background(), payments.UnlockPhoto, "p1")
	require.NoError(t, err)
	require.Equal(t, payments.Wallet{Balance: 4}, w)
}

func TestClient_JoinGroup_WrongPasskey(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/groups/{id}/join", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["passkey"] != "open-sesame" {
			writeEnvelope(w, http.StatusBadRequest, map[string]interface{}{
				"success": false, "code": CodeInvalidPasskey})
			return
		}
		ok(w, map[string]interface{}{"id": chi.URLParam(r, "id"),
			"kind": "group", "createdAt": time.Unix(0, 0).UTC()})
	})
	c := newTestClient(t, r, staticToken("tok"))

	_, err := c.JoinGroup(context.Background(), "g1", "wrong")
	require.True(t, HasCode(err, CodeInvalidPasskey))

	conv, err := c.JoinGroup(context.Background(), "g1", "open-sesame")
	require.NoError(t, err)
	require.Equal(t, "g1", conv.ID)
	require.Equal(t, conversation.Group, conv.Kind)
}

func TestClient_UploadImage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/uploads/images", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, "photo.jpg", hdr.Filename)
		require.Equal(t, "jpegbytes", string(data))
		ok(w, ImageUpload{URL: "https://cdn.example.com/photo.jpg"})
	})
	c := newTestClient(t, r, staticToken("tok"))

	up, err := c.UploadImage(context.Background(), "photo.jpg",
		strings.NewReader("jpegbytes"))
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/photo.jpg", up.URL)
}

func TestClient_Swipe(t *testing.T) {
	c := newTestClient(t, chi.NewRouter(), nil)
	_, err := c.Swipe(context.Background(), "u1", Direction("sideways"))
	require.Error(t, err)
}

func TestClass_String(t *testing.T) {
	require.Equal(t, "business", ClassBusiness.String())
	require.Equal(t, "INVALID CLASS: 9", Class(9).String())
}
