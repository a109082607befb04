package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/crucial707/autosignin/cmd/cli/config"
	"github.com/crucial707/autosignin/internal/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// InitAuth registers token-related commands on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(tokenCmd(), logoutCmd())
}

// tokenCmd signs a bearer token with the server's JWT_SECRET and stores it
// locally for subsequent commands.
func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create an API token",
		Long:  "Sign a bearer token with JWT_SECRET (from the environment or .env) and store it for later commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if subject == "" {
				return fmt.Errorf("subject is required")
			}

			token, err := middleware.IssueToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			if printOnly {
				fmt.Println(token)
				return nil
			}
			if err := config.SaveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Printf("Token for %q stored in %s (expires in %s).\n", subject, config.TokenPath(), ttl)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "Who the token identifies")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the token instead of storing it")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RemoveToken(); err != nil {
				return err
			}
			fmt.Println("Token removed.")
			return nil
		},
	}
}
