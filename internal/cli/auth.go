package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quiz-tournament-client/internal/domain"
)

// NewLoginCmd authenticates against the API and stores the token.
func NewLoginCmd(configPath *string) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			if password == "" {
				var err error
				if password, err = promptLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}
			user, err := rt.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := saveToken(rt.cfg.Auth.TokenFile, rt.session.Token()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", displayName(user), user.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewRegisterCmd creates an account and logs it in.
func NewRegisterCmd(configPath *string) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			if password == "" {
				var err error
				if password, err = promptLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}
			user, err := rt.client.Register(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			if err := saveToken(rt.cfg.Auth.TokenFile, rt.session.Token()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", displayName(user))
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func NewLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			rt.client.Logout()
			if err := removeToken(rt.cfg.Auth.TokenFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func NewWhoamiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			if !rt.session.Authenticated(time.Now()) {
				return fmt.Errorf("%w: not logged in or session expired", domain.ErrUnauthorized)
			}
			out := cmd.OutOrStdout()
			name := rt.session.Name()
			if name == "" {
				name = rt.session.UserID()
			}
			fmt.Fprintf(out, "%s (id %s, role %s)\n", name, rt.session.UserID(), roleOrDefault(rt.session.Role()))
			if exp, ok := rt.session.ExpiresAt(); ok {
				fmt.Fprintf(out, "session expires %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		}),
	}
}

func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

func roleOrDefault(role string) string {
	if role == "" {
		return "player"
	}
	return role
}
