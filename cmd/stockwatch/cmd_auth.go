package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/services"
)

var (
	username string
	password string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := models.Credentials{Username: username, Password: password}
		if _, err := svc.Auth.Register(cmd.Context(), creds); err != nil {
			return fmt.Errorf("registration failed: %s", services.ErrorText(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Registration successful! Log in with `stockwatch login`.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := models.Credentials{Username: username, Password: password}
		user, err := svc.Auth.Login(cmd.Context(), creds)
		if err != nil {
			return fmt.Errorf("login failed: %s", services.LoginErrorText(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Login successful! Logged in as %s (%d on the watchlist).\n",
			user.Username, len(user.StockWatchlist))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		user, ok := svc.Auth.Current(cmd.Context())
		if !ok {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}
		fmt.Fprintf(out, "%s (id %s)\n", user.Username, user.ID)
		fmt.Fprintf(out, "Watchlist: %s\n", strings.Join(user.StockWatchlist, ", "))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&username, "username", "u", "", "account name")
		c.Flags().StringVarP(&password, "password", "p", "", "account password")
	}
}
