////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/heartline/client/conversation"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations, pinned first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := requireLogin()
		if err != nil {
			return err
		}
		defer m.Close()
		if err = m.Refresh(context.Background()); err != nil {
			return err
		}

		pinned, unpinned := m.Pinned(), m.Unpinned()
		for _, c := range append(pinned, unpinned...) {
			fmt.Printf("%s\t%s\n", c.ID, describe(c))
		}
		fmt.Printf("%d pinned, %d unread\n", len(pinned), m.TotalUnread())
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a text or image message to a conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		convID := viper.GetString(conversationFlag)
		text := viper.GetString(messageFlag)
		image := viper.GetString(imageFlag)
		if convID == "" || (text == "" && image == "") {
			return errors.Errorf("--%s and one of --%s or --%s are required",
				conversationFlag, messageFlag, imageFlag)
		}

		m, _, err := requireLogin()
		if err != nil {
			return err
		}
		defer m.Close()
		ctx := context.Background()
		if err = m.Refresh(ctx); err != nil {
			return err
		}

		var sent conversation.Message
		if image != "" {
			f, err := os.Open(image)
			if err != nil {
				return errors.Wrap(err, "failed to open image")
			}
			defer f.Close()
			sent, err = m.SendImage(ctx, convID, filepath.Base(image), f)
			if err != nil {
				return err
			}
		} else if sent, err = m.SendText(ctx, convID, text); err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", sent.ID)
		return nil
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin [conversation]",
	Short: "Pin a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin [conversation]",
	Short: "Unpin a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(args[0], false)
	},
}

// setPinned refreshes the list first so the pin limit is known.
func setPinned(conversationID string, pinned bool) error {
	m, _, err := requireLogin()
	if err != nil {
		return err
	}
	defer m.Close()
	ctx := context.Background()
	if err = m.Refresh(ctx); err != nil {
		return err
	}
	if pinned {
		err = m.Pin(ctx, conversationID)
	} else {
		err = m.Unpin(ctx, conversationID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%d pinned\n", len(m.Pinned()))
	return nil
}

func init() {
	sendCmd.Flags().StringP(conversationFlag, "d", "",
		"ID of the conversation to send to")
	viper.BindPFlag(conversationFlag, sendCmd.Flags().Lookup(conversationFlag))

	sendCmd.Flags().StringP(messageFlag, "m", "", "Text to send")
	viper.BindPFlag(messageFlag, sendCmd.Flags().Lookup(messageFlag))

	sendCmd.Flags().StringP(imageFlag, "", "",
		"Path to a JPEG, PNG or GIF to send")
	viper.BindPFlag(imageFlag, sendCmd.Flags().Lookup(imageFlag))

	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
}
