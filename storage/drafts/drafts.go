////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package drafts keeps unsent compose text per conversation, so text from a
// failed send survives until the user sends or clears it.
package drafts

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/heartline/client/storage/versioned"
)

// Storage constants
const (
	draftsPrefix = "drafts"
	draftVersion = 0
)

// Draft is unsent compose text.
type Draft struct {
	Text    string    `json:"text"`
	SavedAt time.Time `json:"savedAt"`
}

// Store keeps one draft per conversation.
type Store struct {
	kv *versioned.KV
}

func NewStore(kv *versioned.KV) *Store {
	return &Store{kv: kv.Prefix(draftsPrefix)}
}

// Save stores text as the conversation's draft. Empty text deletes it.
func (s *Store) Save(conversationID, text string) error {
	if text == "" {
		return s.Delete(conversationID)
	}
	data, err := json.Marshal(Draft{Text: text, SavedAt: netTime.Now()})
	if err != nil {
		return errors.Wrap(err, "failed to encode draft")
	}
	return errors.WithMessagef(
		s.kv.Set(conversationID, versioned.NewObject(draftVersion, data)),
		"failed to store draft for %s", conversationID)
}

// Get returns the conversation's draft, if any.
func (s *Store) Get(conversationID string) (Draft, bool, error) {
	obj, err := s.kv.Get(conversationID, draftVersion)
	if err != nil {
		if !s.kv.Exists(err) {
			return Draft{}, false, nil
		}
		return Draft{}, false, errors.WithMessagef(err,
			"failed to load draft for %s", conversationID)
	}
	var d Draft
	if err = json.Unmarshal(obj.Data, &d); err != nil {
		return Draft{}, false, errors.Wrapf(err,
			"failed to decode draft for %s", conversationID)
	}
	return d, true, nil
}

// Delete drops the conversation's draft.
func (s *Store) Delete(conversationID string) error {
	err := s.kv.Delete(conversationID, draftVersion)
	if err != nil && s.kv.Exists(err) {
		return errors.WithMessagef(err, "failed to delete draft for %s",
			conversationID)
	}
	return nil
}
