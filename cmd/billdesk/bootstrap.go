package main

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/auth"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/migration"
	"github.com/smallbiznis/billdesk/internal/organization"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create an organization and an admin token for it",
	Example: `  # New tenant, admin user id generated
  billdesk bootstrap --name "Acme Ltd" --currency USD

  # Existing user becomes admin of the new tenant
  billdesk bootstrap --name "Acme Ltd" --user-id 1780000000000000000`,
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)

	bootstrapCmd.Flags().String("name", "", "Organization name")
	bootstrapCmd.Flags().String("currency", "", "ISO 4217 currency code (default USD)")
	bootstrapCmd.Flags().String("user-id", "", "Admin user id (generated when empty)")
	_ = bootstrapCmd.MarkFlagRequired("name")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	currency, _ := cmd.Flags().GetString("currency")
	rawUserID, _ := cmd.Flags().GetString("user-id")

	var (
		orgSvc organizationdomain.Service
		tokens *auth.TokenManager
		node   *snowflake.Node
	)
	app := fx.New(
		fx.NopLogger,
		infrastructure(),
		migration.Module,
		authorization.Module,
		auth.Module,
		organization.Module,
		fx.Populate(&orgSvc, &tokens, &node),
	)
	if err := app.Err(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(ctx)

	userID := node.Generate()
	if strings.TrimSpace(rawUserID) != "" {
		parsed, err := snowflake.ParseString(strings.TrimSpace(rawUserID))
		if err != nil || parsed == 0 {
			return fmt.Errorf("invalid --user-id %q", rawUserID)
		}
		userID = parsed
	}

	org, err := orgSvc.Create(ctx, organizationdomain.CreateOrganizationRequest{
		Name:     name,
		Currency: currency,
	})
	if err != nil {
		return err
	}

	token, err := tokens.Issue(orgcontext.Identity{
		UserID: userID,
		OrgID:  org.ID,
		Role:   authorization.RoleAdmin,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "organization_id: %s\n", org.ID)
	fmt.Fprintf(out, "currency: %s\n", org.Currency)
	fmt.Fprintf(out, "user_id: %s\n", userID)
	fmt.Fprintf(out, "token: %s\n", token)
	return nil
}
