package command

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/service"
)

// NewChatsCmd creates the chats command.
func NewChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats, most recent first",
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
			if err := ctx.loadChatList(me); err != nil {
				return writeCommandError(cmd, err)
			}
			list := ctx.App.ChatList
			filter, _ := cmd.Flags().GetString("filter")
			list.SetFilter(filter)
			list.FlushFilter()
			views := list.Filtered()
			return printResult(cmd, ctx.Output, views, func(w io.Writer) {
				writeChatList(w, views)
			})
		},
	}
	cmd.Flags().String("filter", "", "only chats whose username contains this text")
	return cmd
}

type threadView struct {
	ChatID      string                  `json:"chat_id" yaml:"chat_id"`
	Counterpart *models.UserProfile     `json:"counterpart,omitempty" yaml:"counterpart,omitempty"`
	Blocked     bool                    `json:"blocked" yaml:"blocked"`
	BlockedBy   bool                    `json:"blocked_by" yaml:"blocked_by"`
	Presence    *service.PresenceStatus `json:"presence,omitempty" yaml:"presence,omitempty"`
	Messages    []models.Message        `json:"messages" yaml:"messages"`
}

// NewOpenCmd creates the open command.
func NewOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <chat-id>",
		Short: "Show a chat's messages and mark it seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			me, err := ctx.openChat(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.loadThread(args[0]); err != nil {
				return writeCommandError(cmd, err)
			}

			sel := ctx.App.Selection.State()
			status := ctx.counterpartPresence(sel)
			view := threadView{
				ChatID:      sel.ChatID,
				Counterpart: sel.Counterpart,
				Blocked:     sel.IsReceiverBlocked,
				BlockedBy:   sel.IsCurrentUserBlocked,
				Messages:    ctx.App.Messages.Messages(),
			}
			if status.Known {
				view.Presence = &status
			}
			return printResult(cmd, ctx.Output, view, func(w io.Writer) {
				writeThreadHeader(w, sel, status)
				writeMessages(w, view.Messages, senderNames(me, sel.Counterpart))
			})
		},
	}
}

func writeThreadHeader(w io.Writer, sel service.Selection, status service.PresenceStatus) {
	other := sel.Counterpart
	switch {
	case sel.IsCurrentUserBlocked:
		fmt.Fprintln(w, "--- you can't reply to this chat ---")
	case other != nil && sel.IsReceiverBlocked:
		fmt.Fprintf(w, "--- %s (blocked) ---\n", other.Username)
	case other != nil && status.Online:
		fmt.Fprintf(w, "--- %s (online) ---\n", other.Username)
	case other != nil && !status.LastSeen.IsZero():
		fmt.Fprintf(w, "--- %s (last seen %s) ---\n", other.Username, status.LastSeen.Local().Format(time.DateTime))
	case other != nil:
		fmt.Fprintf(w, "--- %s ---\n", other.Username)
	default:
		fmt.Fprintln(w, "--- unknown user ---")
	}
}

func senderNames(me, other *models.UserProfile) map[string]string {
	names := map[string]string{me.ID: "you"}
	if other != nil {
		names[other.ID] = other.Username
	}
	return names
}
