package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("DOCUPILOT_PASSWORD")
			}
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()

			p, err := ws.Login(ctx, workspace.LoginForm{Email: email, Password: password})
			if err := settle(ctx, p, err, func() string { return ws.Session().State().Error }); err != nil {
				return err
			}
			u := ws.Session().State().User
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (default $DOCUPILOT_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var name, email, password, confirm string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("DOCUPILOT_PASSWORD")
			}
			if !cmd.Flags().Changed("confirm-password") {
				confirm = password
			}
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()

			p, err := ws.Register(ctx, workspace.RegisterForm{
				Name:            name,
				Email:           email,
				Password:        password,
				ConfirmPassword: confirm,
			})
			if err := settle(ctx, p, err, func() string { return ws.Session().State().Error }); err != nil {
				return err
			}
			u := ws.Session().State().User
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in as %s\n", u.Name, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 6 characters (default $DOCUPILOT_PASSWORD)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "Repeat the password (defaults to --password)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := ws.Logout(ctx).Wait(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()

			st := ws.Session().State()
			out := cmd.OutOrStdout()
			if !st.IsAuthenticated() || st.User == nil {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			cyan := color.New(color.FgCyan)
			cyan.Fprintf(out, "  Name:   ")
			fmt.Fprintln(out, st.User.Name)
			cyan.Fprintf(out, "  Email:  ")
			fmt.Fprintln(out, st.User.Email)
			cyan.Fprintf(out, "  Theme:  ")
			fmt.Fprintln(out, ws.Theme().Mode())
			return nil
		},
	}
}
