package cli

import (
	"errors"
	"fmt"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/money"
	"github.com/spf13/cobra"
)

func newProvisionCmd(app func() *App) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a user and its wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, w, err := app().Onboarding.Provision(cmd.Context(), email, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user_id=%d wallet_number=%s\n", u.ID, w.WalletNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newIssueKeyCmd(app func() *App) *cobra.Command {
	var (
		userID uint64
		name   string
		perms  []string
		expiry string
	)
	cmd := &cobra.Command{
		Use:   "issue-key",
		Short: "Issue an API key; the raw key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, key, err := app().Auth.IssueAPIKey(cmd.Context(), userID, name, perms, expiry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s id=%d permissions=%v\n", raw, key.ID, key.Permissions)
			if key.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "expires_at=%s\n", key.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user-id", 0, "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringSliceVar(&perms, "perm", []string{"read"}, "permission: deposit, transfer or read (repeatable)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "1H, 1D, 1M or 1Y; empty never expires")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newSessionTokenCmd(app func() *App) *cobra.Command {
	var userID uint64
	cmd := &cobra.Command{
		Use:   "session-token",
		Short: "Sign a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx := app(), cmd.Context()
			u, err := a.Repo.GetUser(ctx, a.Repo.DB(ctx), userID)
			if err != nil {
				return err
			}
			tok, err := a.Auth.SessionToken(u.ID, u.Email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", tok)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user-id", 0, "user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newBalanceCmd(app func() *App) *cobra.Command {
	var (
		userID uint64
		number string
	)
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a wallet balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx := app(), cmd.Context()
			var (
				w   *model.Wallet
				err error
			)
			switch {
			case number != "":
				w, err = a.Repo.GetWalletByNumber(ctx, a.Repo.DB(ctx), number)
			case userID != 0:
				w, err = a.Repo.GetWalletByUser(ctx, a.Repo.DB(ctx), userID)
			default:
				return errors.New("one of --wallet-number or --user-id is required")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wallet_number=%s balance=%d (₦%s)\n", w.WalletNumber, w.Balance, money.FormatMajor(w.Balance))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user-id", 0, "owner user id")
	cmd.Flags().StringVar(&number, "wallet-number", "", "wallet number")
	return cmd
}
