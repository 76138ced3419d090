package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/service"
)

// printResult writes v as JSON or YAML, or calls text for the default
// output.
func printResult(cmd *cobra.Command, format string, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(out)
		return nil
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func writeProfile(w io.Writer, p *models.UserProfile) {
	fmt.Fprintf(w, "%s (%s)\n", p.Username, p.ID)
	fmt.Fprintf(w, "  email:   %s\n", p.Email)
	if p.Avatar != "" {
		fmt.Fprintf(w, "  avatar:  %s\n", p.Avatar)
	}
	if len(p.Blocked) > 0 {
		fmt.Fprintf(w, "  blocked: %s\n", strings.Join(p.Blocked, ", "))
	}
}

func writeChatList(w io.Writer, views []service.ChatView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "no chats")
		return
	}
	for _, v := range views {
		name := "(unknown user)"
		if v.User != nil {
			name = v.User.Username
		}
		marker := " "
		if !v.IsSeen {
			marker = "*"
		}
		last := v.LastMessage
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%s %s  %-16s %-40s %s\n", marker, v.ChatID, name, truncate(last, 40), formatTime(v.UpdatedAt))
	}
}

func writeMessages(w io.Writer, msgs []models.Message, names map[string]string) {
	for _, m := range msgs {
		writeMessage(w, m, names)
	}
}

func writeMessage(w io.Writer, m models.Message, names map[string]string) {
	name := names[m.SenderID]
	if name == "" {
		name = m.SenderID
	}
	line := m.Text
	if m.Img != "" {
		if line != "" {
			line += " "
		}
		line += "[image " + m.Img + "]"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", formatTime(m.CreatedAt), name, line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
