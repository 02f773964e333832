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

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/heartline/client/auth"
)

// loginCmd requests a code when --otp is absent and logs in when it is
// given. The code may be pasted as received, e.g. "Your code is 123-456".
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a phone number and a one-time code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openMessenger()
		if err != nil {
			return err
		}
		defer m.Close()
		ctx := context.Background()

		phone := viper.GetString(phoneFlag)
		pasted := viper.GetString(otpFlag)
		if pasted == "" {
			normalized, err := m.RequestOTP(ctx, phone)
			if err != nil {
				return err
			}
			fmt.Printf("Code sent to %s. Run login again with --%s.\n",
				normalized, otpFlag)
			return nil
		}

		code, err := auth.OTPFromClipboard(pasted)
		if err != nil {
			return err
		}
		sess, err := m.Login(ctx, phone, code)
		if err != nil {
			return err
		}
		jww.INFO.Printf("Session stored for %s", sess.UserID)
		fmt.Printf("Logged in as %s (%s)\n", sess.Name, sess.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and clear local state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openMessenger()
		if err != nil {
			return err
		}
		defer m.Close()
		if err = m.Logout(context.Background()); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringP(phoneFlag, "", "",
		"Phone number in international format")
	viper.BindPFlag(phoneFlag, loginCmd.Flags().Lookup(phoneFlag))

	loginCmd.Flags().StringP(otpFlag, "o", "",
		"The one-time code, or the text it arrived in")
	viper.BindPFlag(otpFlag, loginCmd.Flags().Lookup(otpFlag))

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
