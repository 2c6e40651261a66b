package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/folio/pkg/auth"
)

func tokenManager(cmd *cobra.Command) (*auth.TokenManager, func() error, error) {
	_, db, logger, err := commandEnv(cmd)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewTokenManager(auth.NewSQLKeyStore(db.conn, db.dialect), logger), db.Close, nil
}

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create an organization API key",
		Long: `keygen creates an API key for one organization and prints it once. Only
the key's hash is stored; a lost key must be revoked and replaced.`,
		Example: `  folio keygen --org org_123 --scopes posts:search,media:search
  folio keygen --org org_123 --scopes analytics:read --name dashboards --expires 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetString("org")
			scopes, _ := cmd.Flags().GetString("scopes")
			name, _ := cmd.Flags().GetString("name")
			expires, _ := cmd.Flags().GetDuration("expires")

			tokens, closeDB, err := tokenManager(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			var expiresAt *time.Time
			if expires > 0 {
				t := time.Now().UTC().Add(expires)
				expiresAt = &t
			}

			key, token, err := tokens.CreateToken(cmd.Context(), org, name, auth.ParseScopes(scopes), expiresAt)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created API key %s for organization %s\n", key.ID, key.OrganizationID)
			fmt.Fprintf(out, "  scopes:  %s\n", strings.Join(key.Scopes, ","))
			if key.ExpiresAt != nil {
				fmt.Fprintf(out, "  expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "\n%s\n\nStore this key now. It cannot be shown again.\n", token)
			return nil
		},
	}
	cmd.Flags().String("org", "", "organization id (required)")
	cmd.Flags().String("scopes", auth.ScopePostsSearch, "comma-separated scopes, or * for all")
	cmd.Flags().String("name", "cli", "human readable key name")
	cmd.Flags().Duration("expires", 0, "key lifetime, e.g. 720h (default: never expires)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newListKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-keys",
		Short: "List an organization's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetString("org")

			tokens, closeDB, err := tokenManager(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			keys, err := tokens.ListTokens(cmd.Context(), org)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPREFIX\tSCOPES\tCREATED\tSTATUS")
			now := time.Now()
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					k.ID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","),
					k.CreatedAt.Format(time.RFC3339), keyStatus(k, now))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("org", "", "organization id (required)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func keyStatus(k *auth.APIKey, now time.Time) string {
	switch {
	case k.Revoked():
		return "revoked"
	case k.Expired(now):
		return "expired"
	default:
		return "active"
	}
}

func newRevokeKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke-key",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetString("org")
			id, _ := cmd.Flags().GetString("id")

			tokens, closeDB, err := tokenManager(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := tokens.RevokeToken(cmd.Context(), org, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked API key %s\n", id)
			return nil
		},
	}
	cmd.Flags().String("org", "", "organization id (required)")
	cmd.Flags().String("id", "", "key id (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
