package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipyardlabs/cargohold/pkg/credstore"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage linked account credentials",
	Long: `Manage credentials for linked external accounts.

Credentials live in the job database and are consumed when the storage
backend references a linked account, e.g. S3 keys:

  cargohold accounts set prod-s3 access_key_id AKIA...
  cargohold accounts set prod-s3 secret_access_key ...`,
}

var accountsSetCmd = &cobra.Command{
	Use:   "set <account> <name> <value>",
	Short: "Store one credential value",
	Args:  cobra.ExactArgs(3),
	RunE:  runAccountsSet,
}

var accountsRmCmd = &cobra.Command{
	Use:   "rm <account>",
	Short: "Remove all credentials for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRm,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsSetCmd)
	accountsCmd.AddCommand(accountsRmCmd)
}

func runAccountsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := credstore.Put(ctx, db, args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s for account %s\n", args[1], args[0])
	return nil
}

func runAccountsRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := credstore.Delete(ctx, db, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed credentials for account %s\n", args[0])
	return nil
}
