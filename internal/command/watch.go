package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fathima-sithara/dm-client/internal/models"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [chat-id]",
		Short: "Follow the chat list, or one chat's messages, until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			sigCtx, stop := signal.NotifyContext(ctx.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if len(args) == 0 {
				err = watchChatList(sigCtx, cmd, ctx)
			} else {
				err = watchThread(sigCtx, cmd, ctx, args[0])
			}
			if err != nil && sigCtx.Err() == nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}
}

func watchChatList(sigCtx context.Context, cmd *cobra.Command, ctx *CommandContext) error {
	me, err := ctx.requireProfile()
	if err != nil {
		return err
	}
	if err := ctx.loadChatList(me); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	list := ctx.App.ChatList
	changes, unwatch := list.Changes()
	defer unwatch()
	if ctx.Output == "text" {
		fmt.Fprintln(out, "--- watching chats (Ctrl+C to stop) ---")
	}
	for {
		views := list.Items()
		if err := printResult(cmd, ctx.Output, views, func(w io.Writer) { writeChatList(w, views) }); err != nil {
			return err
		}
		select {
		case <-changes:
		case <-sigCtx.Done():
			return nil
		}
	}
}

func watchThread(sigCtx context.Context, cmd *cobra.Command, ctx *CommandContext, chatID string) error {
	me, err := ctx.openChat(chatID)
	if err != nil {
		return err
	}
	msgs := ctx.App.Messages
	changes, unwatch := msgs.Changes()
	defer unwatch()
	if err := ctx.loadThread(chatID); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ctx.Output == "text" {
		sel := ctx.App.Selection.State()
		writeThreadHeader(out, sel, ctx.counterpartPresence(sel))
	}
	printed := 0
	for {
		sel := ctx.App.Selection.State()
		names := senderNames(me, sel.Counterpart)
		all := msgs.Messages()
		for _, m := range all[min(printed, len(all)):] {
			if err := printMessage(cmd, ctx.Output, m, names); err != nil {
				return err
			}
		}
		printed = len(all)
		select {
		case <-changes:
		case <-sigCtx.Done():
			return nil
		}
	}
}

func printMessage(cmd *cobra.Command, format string, m models.Message, names map[string]string) error {
	return printResult(cmd, format, m, func(w io.Writer) { writeMessage(w, m, names) })
}
