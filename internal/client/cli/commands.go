package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/buildinfo"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/spf13/cobra"
)

var errPasswordMismatch = errors.New("passwords do not match")

// RootCmd builds the command tree.
func (a *App) RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gophauth",
		Short:         "gophauth account client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := &config.Config{}
	def.LoadDefaults()
	config.RegisterFlags(cmd.PersistentFlags(), def)
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd.Root().PersistentFlags())
		if err != nil {
			return err
		}
		a.serverAddr, a.sessionPath, a.timeout = cfg.Server, cfg.Session, cfg.Timeout
		return nil
	}

	cmd.SetOut(a.out)
	cmd.SetErr(a.out)

	cmd.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.refreshCmd(),
		a.deleteAccountCmd(),
		a.checkPasswordCmd(),
		a.changePasswordCmd(),
		a.forgotPasswordCmd(),
		a.resetPasswordCmd(),
		a.pingCmd(),
		a.versionCmd(),
	)
	return cmd
}

// text returns value or prompts for it when empty.
func (a *App) text(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	return GetSimpleText(a.reader, prompt, a.out)
}

func (a *App) password(prompt string) (string, error) {
	pw, err := GetPassword(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// newPassword asks twice.
func (a *App) newPassword(prompt string) (string, error) {
	first, err := a.password(prompt)
	if err != nil {
		return "", err
	}
	second, err := a.password("Repeat password")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

func (a *App) signupCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := a.text(email, "Email")
			if err != nil {
				return err
			}
			name, err := a.text(name, "Name")
			if err != nil {
				return err
			}
			password, err := a.newPassword("Password")
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				s, err := c.Signup(ctx, email, name, password)
				if err != nil {
					return err
				}
				cmd.Printf("Signed up as %s (id %d)\n", name, s.UserID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "account name")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := a.text(email, "Email")
			if err != nil {
				return err
			}
			password, err := a.password("Password")
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				s, err := c.Login(ctx, email, password)
				if err != nil {
					return err
				}
				cmd.Printf("Logged in as %s\n", s.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End every session of the account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				if err := c.Logout(ctx); err != nil {
					return err
				}
				cmd.Println("Logged out")
				return nil
			})
		},
	}
}

func (a *App) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Get a new access token with the stored refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				if err := c.Refresh(ctx); err != nil {
					return err
				}
				cmd.Println("Access token refreshed")
				return nil
			})
		},
	}
}

func (a *App) deleteAccountCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the account permanently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				answer, err := GetSimpleText(a.reader, "Type 'delete' to confirm", a.out)
				if err != nil {
					return err
				}
				if strings.ToLower(answer) != "delete" {
					cmd.Println("Aborted")
					return nil
				}
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				if err := c.DeleteAccount(ctx); err != nil {
					return err
				}
				cmd.Println("Account deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *App) checkPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password",
		Short: "Check whether a password is the current one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := a.password("Password")
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				ok, err := c.CheckPassword(ctx, password)
				if err != nil {
					return err
				}
				if ok {
					cmd.Println("Password matches")
				} else {
					cmd.Println("Password does not match")
				}
				return nil
			})
		},
	}
}

func (a *App) changePasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-password",
		Short: "Change the password and end all other sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldPassword, err := a.password("Current password")
			if err != nil {
				return err
			}
			newPassword, err := a.newPassword("New password")
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				if err := c.ChangePassword(ctx, oldPassword, newPassword); err != nil {
					return err
				}
				cmd.Println("Password changed. Log in again to get a new refresh token.")
				return nil
			})
		},
	}
}

func (a *App) forgotPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := a.text(email, "Email")
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				code, err := c.ForgotPassword(ctx, email)
				if err != nil {
					return err
				}
				cmd.Printf("Reset code (valid for a few minutes):\n%s\n", code)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func (a *App) resetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [code]",
		Short: "Reset the password with a reset code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			}
			code, err := a.text(code, "Reset code")
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				password, err := c.ResetPassword(ctx, code)
				if err != nil {
					return err
				}
				cmd.Printf("New password: %s\n", password)
				return nil
			})
		},
	}
}

func (a *App) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, c SessionClient) error {
				if err := c.Ping(ctx); err != nil {
					return fmt.Errorf("ping: %w", err)
				}
				cmd.Println("OK")
				return nil
			})
		},
	}
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
