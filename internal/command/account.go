package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fathima-sithara/dm-client/internal/service"
)

// NewRegisterCmd creates the register command.
func NewRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			in := service.RegisterInput{}
			in.Username, _ = cmd.Flags().GetString("username")
			in.Email, _ = cmd.Flags().GetString("email")
			in.Password, _ = cmd.Flags().GetString("password")
			if path, _ := cmd.Flags().GetString("avatar"); path != "" {
				if in.Avatar, err = readImage(path); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			profile, err := ctx.App.Accounts.Register(ctx.Ctx, in)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printResult(cmd, ctx.Output, profile, func(w io.Writer) {
				fmt.Fprintf(w, "Registered and signed in as %s\n", profile.Username)
			})
		},
	}
	cmd.Flags().String("username", "", "unique username")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("password", "", "password")
	cmd.Flags().String("avatar", "", "path to an avatar image")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			in := service.LoginInput{}
			in.Email, _ = cmd.Flags().GetString("email")
			in.Password, _ = cmd.Flags().GetString("password")
			id, err := ctx.App.Accounts.Login(ctx.Ctx, in)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printResult(cmd, ctx.Output, id, func(w io.Writer) {
				name := id.Email
				if p := ctx.App.Session.Profile(); p != nil {
					name = p.Username
				}
				fmt.Fprintf(w, "Signed in as %s\n", name)
			})
		},
	}
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if err := ctx.App.Accounts.Logout(ctx.Ctx); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			me, err := ctx.requireProfile()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printResult(cmd, ctx.Output, me, func(w io.Writer) {
				writeProfile(w, me)
			})
		},
	}
}

func readImage(path string) (*service.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &service.ImageFile{Name: filepath.Base(path), Data: data}, nil
}
