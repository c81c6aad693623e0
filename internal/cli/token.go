package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/remote/authority"
)

type tokenView struct {
	Token     string     `json:"token"`
	Subject   string     `json:"subject"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (v tokenView) RenderText(w io.Writer) {
	fmt.Fprintln(w, v.Token)
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the development authority",
		Long: `Issue an HS256 token signed with AUTHORITY_JWT_SECRET. Use it as
LEDGER_REMOTE_TOKEN on devices syncing with the authority binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.Config.Authority.JWTSecret
			if secret == "" {
				return NewExitError(ExitCommandError, "AUTHORITY_JWT_SECRET is not set")
			}
			token, err := authority.NewToken(secret, subject, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to issue token", err)
			}

			view := tokenView{Token: token, Subject: subject}
			if ttl > 0 {
				exp := time.Now().Add(ttl).UTC()
				view.ExpiresAt = &exp
			}
			return opts.formatter(cmd).Success(view)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "owner", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}
