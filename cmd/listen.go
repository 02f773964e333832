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
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/heartline/client/event"
	"gitlab.com/heartline/client/stoppable"
	"gitlab.com/heartline/client/switchboard"
)

// listenCmd connects the push channel and prints changes until interrupted,
// the channel drops or --waitTimeout passes.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Follow conversations over the push channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := requireLogin()
		if err != nil {
			return err
		}
		defer m.Close()

		ctx, cancel := interruptContext()
		defer cancel()
		if timeout := viper.GetDuration(waitTimeoutFlag); timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err = m.Refresh(ctx); err != nil {
			return err
		}

		m.Switchboard().RegisterFunc("printer", switchboard.AnyConversation,
			switchboard.MessagesChanged, func(c switchboard.Change) {
				msgs := m.Messages(c.ConversationID)
				if len(msgs) == 0 {
					return
				}
				last := msgs[len(msgs)-1]
				fmt.Printf("[%s] %s: %s\n", c.ConversationID, last.SenderID,
					last.Preview())
			})
		m.Switchboard().RegisterFunc("typing", switchboard.AnyConversation,
			switchboard.TypingChanged, func(c switchboard.Change) {
				if typing := m.Typing(c.ConversationID); len(typing) > 0 {
					fmt.Printf("[%s] typing: %v\n", c.ConversationID, typing)
				}
			})
		dropped := make(chan struct{}, 1)
		err = m.Events().RegisterEventCallback("printer", func(e event.Event) {
			fmt.Println(e)
			if e.Type == event.PushDisconnected {
				select {
				case dropped <- struct{}{}:
				default:
				}
			}
		})
		if err != nil {
			return err
		}

		stop, err := m.StartPush(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Listening, press Ctrl+C to stop")

		select {
		case <-ctx.Done():
		case <-dropped:
		}
		if !stop.IsStopped() {
			if err = stop.Close(); err != nil {
				jww.WARN.Printf("Failed to close push channel: %+v", err)
			}
		}
		return stoppable.WaitForStopped(stop, 5*time.Second)
	},
}

func init() {
	listenCmd.Flags().DurationP(waitTimeoutFlag, "", 0,
		"Stop listening after this long (0 waits for Ctrl+C)")
	viper.BindPFlag(waitTimeoutFlag, listenCmd.Flags().Lookup(waitTimeoutFlag))

	rootCmd.AddCommand(listenCmd)
}
