package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkline/parkpos/cli/pkg/output"
	"github.com/parkline/parkpos/internal/apierr"
	"github.com/parkline/parkpos/internal/auth"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as an operator",
	Long:  "Authenticate against the point-of-sale backend and store the session on this terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("PARKPOS_ACCESS_KEY")
		}
		if username == "" {
			return errors.New("username is required")
		}
		if password == "" {
			return errors.New("password is required (--password or PARKPOS_ACCESS_KEY)")
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Router.Navigate(ctx, guard.LoginRoute)
		if err != nil {
			return err
		}
		if res.Redirected() {
			output.Info("Already logged in as %s. Run 'parkpos logout' to switch operator.", a.Store.Profile(ctx).DisplayName())
			return nil
		}

		resp, err := a.Auth.Login(ctx, username, password)
		if err != nil {
			var apiErr *apierr.Error
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				msg := apiErr.Message
				if msg == "" {
					msg = "invalid username or password"
				}
				return fmt.Errorf("login failed: %s", msg)
			}
			return err
		}
		if resp.Jwt == "" {
			return errors.New("login rejected: the server issued no credential")
		}

		res, err = a.Router.Navigate(ctx, guard.DefaultRoute)
		if err != nil {
			return err
		}

		output.Success("Logged in as %s", a.Store.Profile(ctx).DisplayName())
		if resp.PwdMsgToExpire != nil && *resp.PwdMsgToExpire != "" {
			output.Warn("%s", *resp.PwdMsgToExpire)
		}
		if res.Route.Path == guard.ChangePasswordRoute {
			output.Warn("Your password must be changed before continuing. Run 'parkpos passwd'.")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of this terminal",
	Long: `Ask the backend to end the session and clear it from this terminal.

The backend refuses while the operator's shift is open; close it first
with 'parkpos shift close'. --local skips the backend check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.Store.IsAuthenticated(ctx) {
			output.Info("Not logged in.")
			return nil
		}

		local, _ := cmd.Flags().GetBool("local")
		if local {
			if err := a.Auth.Logout(ctx); err != nil {
				return err
			}
			output.Success("Session cleared on this terminal")
			return nil
		}

		code, err := serviceCode(cmd)
		if err != nil {
			return err
		}
		if err := a.Auth.SignOut(ctx, code); err != nil {
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

type whoami struct {
	session.Profile
	Timezone  string     `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		profile := a.Store.Profile(ctx)
		if profile == nil {
			return errors.New("not logged in")
		}

		info := whoami{Profile: *profile, Timezone: a.Store.Timezone(ctx)}
		if exp, ok := auth.ExpiresAt(a.Store.Credential(ctx)); ok {
			info.ExpiresAt = &exp
		}

		return output.Print(outputFormat, info, func() *output.Table {
			rows := [][2]string{
				{"Username", profile.Username},
				{"Name", profile.DisplayName()},
				{"Roles", strings.Join(profile.Roles, ", ")},
			}
			if profile.CompanyName != nil {
				rows = append(rows, [2]string{"Company", *profile.CompanyName})
			}
			if info.Timezone != "" {
				rows = append(rows, [2]string{"Timezone", info.Timezone})
			}
			if info.ExpiresAt != nil {
				rows = append(rows, [2]string{"Session expires", info.ExpiresAt.Local().Format(time.RFC1123)})
			}
			if profile.MustChangePassword {
				rows = append(rows, [2]string{"Password", "must be changed"})
			}
			return output.KeyValues(rows...)
		})
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the operator password",
	Long:  "Change the password of the logged-in operator. The session ends afterwards; log in again with the new password.",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetString("current")
		next, _ := cmd.Flags().GetString("new")
		if current == "" || next == "" {
			return errors.New("--current and --new are required")
		}
		if current == next {
			return errors.New("the new password must differ from the current one")
		}

		a, scope, err := enter(cmd.Context(), guard.ChangePasswordRoute)
		if err != nil {
			return err
		}
		defer a.Close()

		profile := a.Store.Profile(scope)
		if profile == nil {
			return errors.New("not logged in")
		}
		if err := a.Auth.ChangePassword(scope, profile.Username, current, next); err != nil {
			return err
		}
		output.Success("Password changed")

		if err := a.Auth.Logout(cmd.Context()); err != nil {
			return err
		}
		output.Info("Log in again with the new password.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, passwdCmd)

	loginCmd.Flags().StringP("username", "u", "", "Username")
	loginCmd.Flags().StringP("password", "p", "", "Password (or PARKPOS_ACCESS_KEY)")

	logoutCmd.Flags().String("service-code", "", "Service code of this point of sale (default from config)")
	logoutCmd.Flags().Bool("local", false, "Clear the session without asking the backend")

	passwdCmd.Flags().String("current", "", "Current password")
	passwdCmd.Flags().String("new", "", "New password")
}
