package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"coaching-backend/internal/auth"
)

type tokenOptions struct {
	userID   int64
	email    string
	nickname string
	secret   string
	ttl      time.Duration
}

func newTokenCmd() *cobra.Command {
	o := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long: `Mint an access token signed with JWT_SECRET (read from the environment
or .env) for calling the API or opening a canvas socket locally.

Example:
  boardctl token --user 1 --nickname coach`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.secret == "" {
				_ = godotenv.Load()
				o.secret = os.Getenv("JWT_SECRET")
			}
			if o.secret == "" {
				return fmt.Errorf("JWT_SECRET is not set (use --secret)")
			}
			if o.userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			token, err := auth.NewJWTManager(o.secret, o.ttl).GenerateAccessToken(o.userID, o.email, o.nickname)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&o.userID, "user", 0, "User id")
	cmd.Flags().StringVar(&o.email, "email", "", "Email claim")
	cmd.Flags().StringVar(&o.nickname, "nickname", "dev", "Nickname claim")
	cmd.Flags().StringVar(&o.secret, "secret", "", "Signing secret (default: $JWT_SECRET)")
	cmd.Flags().DurationVar(&o.ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
