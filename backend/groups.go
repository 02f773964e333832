////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"context"
	"net/http"
	"net/url"

	"gitlab.com/heartline/client/conversation"
)

// JoinGroup joins a passkey-protected group and returns its conversation.
// A wrong passkey is a business error with CodeInvalidPasskey.
func (c *Client) JoinGroup(ctx context.Context, groupID, passkey string) (
	conversation.Conversation, error) {
	var conv conversation.Conversation
	err := c.call(ctx, http.MethodPost, groupPath(groupID, "/join"), nil,
		map[string]string{"passkey": passkey}, &conv)
	return conv, err
}

func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	return c.call(ctx, http.MethodPost, groupPath(groupID, "/leave"), nil,
		nil, nil)
}

// RespondInvitation accepts or rejects a group invitation. On acceptance the
// group's conversation is returned.
func (c *Client) RespondInvitation(ctx context.Context, groupID string,
	accept bool) (*conversation.Conversation, error) {
	var conv *conversation.Conversation
	err := c.call(ctx, http.MethodPost, groupPath(groupID, "/invitation"),
		nil, map[string]bool{"accept": accept}, &conv)
	return conv, err
}

func groupPath(id, suffix string) string {
	return "/groups/" + url.PathEscape(id) + suffix
}
