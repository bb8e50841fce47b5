package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/layer-3/bustrack"
	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/internal/logging"
)

const defaultAPI = "http://localhost:7161"

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BUSTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "bustrack-driver",
		Short:         "Sign in as a driver and report bus locations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("api", defaultAPI, "Base URL of the bustrack API")
	root.PersistentFlags().String("token-file", defaultTokenFile(), "Where tokens are kept between runs")
	root.PersistentFlags().Bool("debug", false, "Log requests to stderr")
	for _, name := range []string{"api", "token-file", "debug"} {
		_ = v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(
		newLoginCmd(v),
		newSetPasswordCmd(v),
		newBusCmd(v),
		newReportCmd(v),
		newLocationsCmd(v),
		newForgotPasswordCmd(v),
		newConfirmForgotPasswordCmd(v),
		newChangePasswordCmd(v),
		newLogoutCmd(v),
	)
	return root
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bustrack-tokens.json"
	}
	return filepath.Join(dir, "bustrack", "tokens.json")
}

func newClient(v *viper.Viper) (*bustrack.Client, error) {
	logger := zap.NewNop()
	if v.GetBool("debug") {
		l, err := logging.New("debug", "console")
		if err != nil {
			return nil, err
		}
		logger = l
	}

	return bustrack.NewClient(v.GetString("api"),
		bustrack.WithTokenStore(bustrack.NewFileTokenStore(v.GetString("token-file"))),
		bustrack.WithLogger(logger),
	)
}

// secret reads a password from a flag, falling back to an environment variable
func secret(cmd *cobra.Command, flag, env string) string {
	if value, _ := cmd.Flags().GetString(flag); value != "" {
		return value
	}
	return os.Getenv(env)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reauthHint(err error) error {
	if errors.Is(err, bustrack.ErrReauthenticationRequired) {
		return fmt.Errorf("%w: run 'bustrack-driver login'", err)
	}
	return err
}

func newLoginCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the issued tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")

			result, err := client.Authenticate(cmd.Context(), username, secret(cmd, "password", "BUSTRACK_PASSWORD"))
			if err != nil {
				return err
			}
			if result.Challenge != nil {
				return fmt.Errorf("a new password is required: run 'bustrack-driver set-password'")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().String("username", "", "Driver username")
	cmd.Flags().String("password", "", "Password (or BUSTRACK_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newSetPasswordCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace a temporary password on first sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			newPassword := secret(cmd, "new-password", "BUSTRACK_NEW_PASSWORD")
			confirmation, _ := cmd.Flags().GetString("confirm")
			if confirmation == "" {
				confirmation = newPassword
			}

			result, err := client.Authenticate(cmd.Context(), username, secret(cmd, "password", "BUSTRACK_PASSWORD"))
			if err != nil {
				return err
			}
			if result.Challenge == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No new password required; signed in")
				return nil
			}

			if _, err := client.SetNewPassword(cmd.Context(), result.Challenge, newPassword, confirmation); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password set, signed in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().String("username", "", "Driver username")
	cmd.Flags().String("password", "", "Temporary password (or BUSTRACK_PASSWORD)")
	cmd.Flags().String("new-password", "", "New password (or BUSTRACK_NEW_PASSWORD)")
	cmd.Flags().String("confirm", "", "New password again")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newBusCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bus",
		Short: "Show the bus assigned to the signed in driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}

			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				tokens, err := client.Tokens(cmd.Context())
				if err != nil {
					return err
				}
				if tokens == nil {
					return reauthHint(bustrack.ErrReauthenticationRequired)
				}
				identity, err := tokens.Identity()
				if err != nil {
					return err
				}
				email = identity.Email
			}

			bus, err := client.GetBusForDriver(cmd.Context(), email)
			if err != nil {
				return reauthHint(err)
			}
			return printJSON(cmd, bus)
		},
	}
	cmd.Flags().String("email", "", "Driver email; defaults to the signed in driver")
	return cmd
}

func newReportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report the current position of a bus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			busID, _ := cmd.Flags().GetInt64("bus")
			lat, _ := cmd.Flags().GetString("lat")
			lon, _ := cmd.Flags().GetString("lon")

			latitude, err := decimal.NewFromString(lat)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", lat)
			}
			longitude, err := decimal.NewFromString(lon)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", lon)
			}

			client, err := newClient(v)
			if err != nil {
				return err
			}

			location := core.Location{BusID: busID, Latitude: latitude, Longitude: longitude}
			if err := client.StoreLocation(cmd.Context(), location); err != nil {
				return reauthHint(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reported bus %d at %s,%s\n", busID, latitude, longitude)
			return nil
		},
	}
	cmd.Flags().Int64("bus", 0, "Bus id")
	cmd.Flags().String("lat", "", "Latitude in degrees")
	cmd.Flags().String("lon", "", "Longitude in degrees")
	_ = cmd.MarkFlagRequired("bus")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newLocationsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List the latest position of every bus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			locations, err := client.ListLocations(cmd.Context())
			if err != nil {
				return reauthHint(err)
			}
			return printJSON(cmd, locations)
		},
	}
}

func newForgotPasswordCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			if err := client.ForgotPassword(cmd.Context(), username); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the account exists, a reset code has been sent")
			return nil
		},
	}
	cmd.Flags().String("username", "", "Driver username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newConfirmForgotPasswordCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm-forgot-password",
		Short: "Set a new password with a reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			code, _ := cmd.Flags().GetString("code")
			if err := client.ConfirmForgotPassword(cmd.Context(), username, code, secret(cmd, "password", "BUSTRACK_NEW_PASSWORD")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password reset successfully")
			return nil
		},
	}
	cmd.Flags().String("username", "", "Driver username")
	cmd.Flags().String("code", "", "Reset code")
	cmd.Flags().String("password", "", "New password (or BUSTRACK_NEW_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newChangePasswordCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the signed in driver's password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			err = client.ChangePassword(cmd.Context(),
				secret(cmd, "old-password", "BUSTRACK_PASSWORD"),
				secret(cmd, "new-password", "BUSTRACK_NEW_PASSWORD"))
			if err != nil {
				return reauthHint(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed successfully")
			return nil
		},
	}
	cmd.Flags().String("old-password", "", "Current password (or BUSTRACK_PASSWORD)")
	cmd.Flags().String("new-password", "", "New password (or BUSTRACK_NEW_PASSWORD)")
	return cmd
}

func newLogoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(v)
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
