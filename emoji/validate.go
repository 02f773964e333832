////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package emoji validates message reactions and backs the reaction picker.
package emoji

import (
	"sort"
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/pkg/errors"
)

// ErrInvalidReaction is returned if the passed reaction string is not a
// single emoji.
var ErrInvalidReaction = errors.New(
	"the reaction is not valid, it must be a single emoji")

// QuickReactions are offered before the full picker.
var QuickReactions = []string{"❤️", "😂", "😮", "😢", "👍", "🔥"}

// ValidateReaction checks that the reaction only contains a single emoji.
func ValidateReaction(reaction string) error {
	emojisList := gomoji.CollectAll(reaction)
	switch {
	case len(emojisList) < 1:
		// No emojis found
		return ErrInvalidReaction
	case len(emojisList) > 1:
		return ErrInvalidReaction
	case emojisList[0].Character != reaction:
		// Non-emoji characters found alongside an emoji
		return ErrInvalidReaction
	}
	return nil
}

// Search returns emojis whose slug or name contains every word of query,
// ordered by slug. An empty query returns nothing.
func Search(query string, limit int) []gomoji.Emoji {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil
	}

	var found []gomoji.Emoji
	for _, e := range gomoji.AllEmojis() {
		name := e.Slug + " " + strings.ToLower(e.UnicodeName)
		match := true
		for _, w := range words {
			if !strings.Contains(name, w) {
				match = false
				break
			}
		}
		if match {
			found = append(found, e)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Slug < found[j].Slug
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found
}
