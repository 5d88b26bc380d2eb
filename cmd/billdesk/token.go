package main

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billdesk/internal/auth"
	"github.com/smallbiznis/billdesk/internal/authorization"
	"github.com/smallbiznis/billdesk/internal/clock"
	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Issue a bearer token for an existing user",
	Example: `  billdesk token --user-id 1780000000000000001 --org-id 1780000000000000000 --role staff`,
	RunE:    runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("user-id", "", "User id")
	tokenCmd.Flags().String("org-id", "", "Organization id (empty for an identity without a tenant)")
	tokenCmd.Flags().String("role", authorization.RoleStaff, "Role: "+strings.Join(authorization.Roles(), ", "))
	_ = tokenCmd.MarkFlagRequired("user-id")
}

func runToken(cmd *cobra.Command, args []string) error {
	rawUserID, _ := cmd.Flags().GetString("user-id")
	rawOrgID, _ := cmd.Flags().GetString("org-id")
	role, _ := cmd.Flags().GetString("role")

	userID, err := snowflake.ParseString(strings.TrimSpace(rawUserID))
	if err != nil || userID == 0 {
		return fmt.Errorf("invalid --user-id %q", rawUserID)
	}
	var orgID snowflake.ID
	if strings.TrimSpace(rawOrgID) != "" {
		orgID, err = snowflake.ParseString(strings.TrimSpace(rawOrgID))
		if err != nil {
			return fmt.Errorf("invalid --org-id %q", rawOrgID)
		}
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !authorization.IsRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	tokens, err := auth.NewTokenManager(config.Load(), clock.SystemClock{})
	if err != nil {
		return err
	}
	token, err := tokens.Issue(orgcontext.Identity{UserID: userID, OrgID: orgID, Role: role})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
