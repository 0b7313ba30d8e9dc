// Command admintoken prints a token for the sitesrv admin API, signed with
// ADMIN_JWT_SECRET (read from the environment or .env, like the server).
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Y3rnur/sitesrv/backend"
)

func main() {
	if err := newCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd(out io.Writer) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:          "admintoken",
		Short:        "Prints an HS256 token accepted by the admin API.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := backend.LoadConfig()
			tok, err := backend.Auth{Secret: cfg.AdminJWTSecret}.GenerateJWT(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, tok)
			return err
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "admin",
		"Subject recorded in the token and in admin API logs.")
	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 24*time.Hour,
		"How long the token stays valid.")
	return cmd
}
