////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// MessageType tags the variant held in a Message's Content.
type MessageType uint8

const (
	Text MessageType = iota
	Image
	Video
	Gift
	Invitation
	System
)

var messageTypeNames = [...]string{
	Text:       "text",
	Image:      "image",
	Video:      "video",
	Gift:       "gift",
	Invitation: "invitation",
	System:     "system",
}

// String returns the wire name of the type.
func (mt MessageType) String() string {
	if int(mt) < len(messageTypeNames) {
		return messageTypeNames[mt]
	}
	return "INVALID MESSAGE TYPE: " + strconv.Itoa(int(mt))
}

// MarshalText encodes the type by its wire name.
func (mt MessageType) MarshalText() ([]byte, error) {
	if int(mt) >= len(messageTypeNames) {
		return nil, errors.Errorf("unknown message type %d", mt)
	}
	return []byte(messageTypeNames[mt]), nil
}

// UnmarshalText decodes a wire name.
func (mt *MessageType) UnmarshalText(text []byte) error {
	for i, name := range messageTypeNames {
		if name == string(text) {
			*mt = MessageType(i)
			return nil
		}
	}
	return errors.Errorf("unknown message type %q", text)
}

// Content is the payload of a message. Each MessageType has exactly one
// implementation, all of which are plain values so copying a Message copies
// its content.
type Content interface {
	Type() MessageType

	// Preview is the one-line form shown in a conversation list.
	Preview() string
}

type TextContent struct {
	Body string `json:"body"`
}

type ImageContent struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type VideoContent struct {
	URL             string `json:"url"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type GiftContent struct {
	GiftID string `json:"giftId"`
	Name   string `json:"name"`
	Coins  int64  `json:"coins"`
}

// InvitationContent is a group invitation embedded in a message. Its Status
// only changes through an explicit accept or reject by the invitee.
type InvitationContent struct {
	GroupID   string           `json:"groupId"`
	GroupName string           `json:"groupName"`
	InviterID string           `json:"inviterId"`
	Status    InvitationStatus `json:"status"`
}

// SystemContent is a backend-generated notice (member joined, match made).
type SystemContent struct {
	Body string `json:"body"`
}

func (TextContent) Type() MessageType       { return Text }
func (ImageContent) Type() MessageType      { return Image }
func (VideoContent) Type() MessageType      { return Video }
func (GiftContent) Type() MessageType       { return Gift }
func (InvitationContent) Type() MessageType { return Invitation }
func (SystemContent) Type() MessageType     { return System }

func (c TextContent) Preview() string       { return c.Body }
func (ImageContent) Preview() string        { return "Photo" }
func (VideoContent) Preview() string        { return "Video" }
func (c GiftContent) Preview() string       { return "Gift: " + c.Name }
func (c InvitationContent) Preview() string { return "Invitation to " + c.GroupName }
func (c SystemContent) Preview() string     { return c.Body }

// decodeContent unmarshals raw into the variant selected by t.
func decodeContent(t MessageType, raw json.RawMessage) (Content, error) {
	var (
		c   Content
		err error
	)
	switch t {
	case Text:
		var v TextContent
		err = unmarshalInto(raw, &v)
		c = v
	case Image:
		var v ImageContent
		err = unmarshalInto(raw, &v)
		c = v
	case Video:
		var v VideoContent
		err = unmarshalInto(raw, &v)
		c = v
	case Gift:
		var v GiftContent
		err = unmarshalInto(raw, &v)
		c = v
	case Invitation:
		var v InvitationContent
		err = unmarshalInto(raw, &v)
		c = v
	case System:
		var v SystemContent
		err = unmarshalInto(raw, &v)
		c = v
	default:
		return nil, errors.Errorf("unknown message type %d", t)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode %s content", t)
	}
	return c, nil
}

func unmarshalInto(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
