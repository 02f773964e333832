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
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the coin balance, premium status and coin packs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, api, err := requireLogin()
		if err != nil {
			return err
		}
		defer m.Close()
		ctx := context.Background()
		if err = m.RefreshWallet(ctx); err != nil {
			return err
		}

		w := m.Wallet()
		fmt.Printf("Balance: %d coins\n", w.Balance)
		fmt.Printf("Premium: %t\n", w.Premium)

		packs, err := api.Packs(ctx)
		if err != nil {
			jww.WARN.Printf("Failed to list coin packs: %+v", err)
			return nil
		}
		for _, p := range packs {
			fmt.Printf("  %s\t%s\t%d coins\t%d %s\n", p.ID, p.Name, p.Coins,
				p.Price, p.Currency)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
}
