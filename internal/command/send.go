package command

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	errBlocked     = errors.New("cannot send: this chat is blocked")
	errEmptySend   = errors.New("nothing to send")
	errUnknownUser = errors.New("cannot send: the other user is unknown")
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <chat-id> [text...]",
		Short: "Send a message, optionally with an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if _, err := ctx.openChat(args[0]); err != nil {
				return writeCommandError(cmd, err)
			}

			msgs := ctx.App.Messages
			msgs.SetDraft(strings.Join(args[1:], " "))
			if path, _ := cmd.Flags().GetString("image"); path != "" {
				img, err := readImage(path)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				msgs.AttachImage(img)
			}

			msg, err := msgs.SendDraft(ctx.Ctx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if msg == nil {
				sel := ctx.App.Selection.State()
				switch {
				case sel.IsCurrentUserBlocked || sel.IsReceiverBlocked:
					err = errBlocked
				case sel.Counterpart == nil:
					err = errUnknownUser
				default:
					err = errEmptySend
				}
				return writeCommandError(cmd, err)
			}
			return printResult(cmd, ctx.Output, msg, func(w io.Writer) {
				fmt.Fprintf(w, "Sent %s\n", msg.ID)
			})
		},
	}
	cmd.Flags().String("image", "", "path to an image to attach")
	return cmd
}
