package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipyardlabs/cargohold/pkg/authz"
)

var (
	tokenSubject string
	tokenAdmin   bool
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token",
	Long: `Issue a signed bearer token using the configured auth secret.

Intended for development and operations; production tokens come from the
surrounding system's login flow.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Principal id to embed (required)")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Grant the admin capability")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	auth, err := authz.NewJWTAuthenticator(cfg.Auth.Secret)
	if err != nil {
		return err
	}

	token, err := auth.Issue(authz.Principal{ID: tokenSubject, Admin: tokenAdmin}, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
