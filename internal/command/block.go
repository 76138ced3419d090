package command

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewBlockCmd creates the block command.
func NewBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <chat-id>",
		Short: "Block or unblock the other user in a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if _, err := ctx.openChat(args[0]); err != nil {
				return writeCommandError(cmd, err)
			}
			other := ctx.App.Selection.State().Counterpart
			blocked, err := ctx.App.Blocks.ToggleBlock(ctx.Ctx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			result := map[string]any{"chat_id": args[0], "blocked": blocked}
			return printResult(cmd, ctx.Output, result, func(w io.Writer) {
				verb := "Unblocked"
				if blocked {
					verb = "Blocked"
				}
				fmt.Fprintf(w, "%s %s\n", verb, other.Username)
			})
		},
	}
}
