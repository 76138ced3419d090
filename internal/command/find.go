package command

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewFindCmd creates the find command.
func NewFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <username>",
		Short: "Look up a user by exact username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if _, err := ctx.requireProfile(); err != nil {
				return writeCommandError(cmd, err)
			}
			user, err := ctx.App.Threads.FindByUsername(ctx.Ctx, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if user == nil {
				return writeCommandError(cmd, fmt.Errorf("no user named %q", args[0]))
			}
			return printResult(cmd, ctx.Output, user, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", user.Username, user.ID)
			})
		},
	}
}

// NewAddCmd creates the add command.
func NewAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <username>",
		Short: "Start a chat with a user",
		Args:  cobra.ExactArgs(1),
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
			user, err := ctx.App.Threads.FindByUsername(ctx.Ctx, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if user == nil {
				return writeCommandError(cmd, fmt.Errorf("no user named %q", args[0]))
			}
			chatID, err := ctx.App.Threads.CreateThread(ctx.Ctx, me.ID, user.ID)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			result := map[string]string{"chat_id": chatID, "receiver_id": user.ID}
			return printResult(cmd, ctx.Output, result, func(w io.Writer) {
				fmt.Fprintf(w, "Started chat %s with %s\n", chatID, user.Username)
			})
		},
	}
}
