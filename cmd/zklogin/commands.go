package main

import (
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/yawdotio/totalbeginers-Suitters/login"
	"github.com/yawdotio/totalbeginers-Suitters/oauth"
	"github.com/yawdotio/totalbeginers-Suitters/session"
)

func run(open opener, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func newLoginCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Start a new login and print the provider URL",
		Args:  cobra.NoArgs,
		RunE: run(open, func(cmd *cobra.Command, a *app, _ []string) error {
			if _, err := a.flow.BeginLogin(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "After signing in, run: zklogin complete '<redirected URL>'")
			return nil
		}),
	}
}

func newCompleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <redirect-url>",
		Short: "Finish the pending login with the URL the provider redirected to",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(cmd *cobra.Command, a *app, args []string) error {
			sess, err := a.flow.CompleteLogin(cmd.Context(), oauth.NewStaticLocation(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.UserAddress)
			return nil
		}),
	}
}

func newStatusCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored login state",
		Args:  cobra.NoArgs,
		RunE: run(open, func(cmd *cobra.Command, a *app, _ []string) error {
			sess, err := a.flow.Restore(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, sess.State())
			if sess.IsAuthenticated() {
				fmt.Fprintf(out, "address:  %s\nmaxEpoch: %d\n", sess.UserAddress, sess.MaxEpoch)
			}
			return nil
		}),
	}
}

func newLogoutCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: run(open, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.flow.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.StateLoggedOut)
			return nil
		}),
	}
}

func newAddressCmd(open opener) *cobra.Command {
	var qrPath string

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the wallet address",
		Args:  cobra.NoArgs,
		RunE: run(open, func(cmd *cobra.Command, a *app, _ []string) error {
			sess, err := a.flow.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if !sess.IsAuthenticated() {
				return login.ErrNotAuthenticated
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.UserAddress)
			if qrPath != "" {
				if err := qrcode.WriteFile(sess.UserAddress, qrcode.Medium, 256, qrPath); err != nil {
					return errors.Wrap(err, "write QR code")
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&qrPath, "qr", "", "Also write the address as a PNG QR code to this path")
	return cmd
}

func txArg(arg string) ([]byte, error) {
	tx, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, errors.Wrap(err, "transaction bytes must be base64")
	}
	return tx, nil
}

func newSignCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <base64-tx-bytes>",
		Short: "Produce a zkLogin signature for transaction bytes",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(cmd *cobra.Command, a *app, args []string) error {
			tx, err := txArg(args[0])
			if err != nil {
				return err
			}
			sig, err := a.flow.SignTransaction(cmd.Context(), tx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		}),
	}
}

func newSubmitCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <base64-tx-bytes>",
		Short: "Sign transaction bytes and execute them",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(cmd *cobra.Command, a *app, args []string) error {
			tx, err := txArg(args[0])
			if err != nil {
				return err
			}
			res, err := a.flow.Submit(cmd.Context(), tx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Digest)
			return nil
		}),
	}
}
