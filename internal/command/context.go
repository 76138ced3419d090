package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fathima-sithara/dm-client/internal/app"
	"github.com/fathima-sithara/dm-client/internal/config"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/service"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

// CommandContext is what a command runs against.
type CommandContext struct {
	Ctx    context.Context
	App    *app.App
	Output string
	close  func()
}

func (c *CommandContext) Close() { c.close() }

// openApp builds the client from the --config file. Tests replace it.
var openApp = func(ctx context.Context, configPath string) (*app.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := utils.NewLogger(cfg.IsDev(), cfg.App.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	a, cleanup, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, func() {
		cleanup()
		_ = log.Sync()
	}, nil
}

// GetContext resolves config, output format and the client for a command.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, _ := cmd.Flags().GetString("config")
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q", output)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, cleanup, err := openApp(ctx, configPath)
	if err != nil {
		return nil, err
	}
	return &CommandContext{Ctx: ctx, App: a, Output: output, close: cleanup}, nil
}

func (c *CommandContext) requireProfile() (*models.UserProfile, error) {
	st := c.App.Session.State()
	if st.UserID == "" {
		return nil, service.ErrNotSignedIn
	}
	if st.Err != nil {
		return nil, fmt.Errorf("load profile: %w", st.Err)
	}
	if st.Profile == nil {
		return nil, fmt.Errorf("no profile for %s", st.UserID)
	}
	return st.Profile, nil
}

// waitUntil blocks until ready reports true, re-checking on every signal
// from changes, or fails after the store timeout.
func (c *CommandContext) waitUntil(changes <-chan struct{}, ready func() bool, what string) error {
	timeout := c.App.Config.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for !ready() {
		select {
		case <-changes:
		case <-timer.C:
			return fmt.Errorf("timed out waiting for %s", what)
		case <-c.Ctx.Done():
			return c.Ctx.Err()
		}
	}
	return nil
}

// loadChatList subscribes to the signed-in user's chat list and waits for
// the first joined snapshot.
func (c *CommandContext) loadChatList(me *models.UserProfile) error {
	list := c.App.ChatList
	changes, unwatch := list.Changes()
	defer unwatch()
	if err := list.Subscribe(c.Ctx, me.ID); err != nil {
		return err
	}
	return c.waitUntil(changes, list.Loaded, "chat list")
}

// openChat selects chatID from the chat list, marking it seen.
func (c *CommandContext) openChat(chatID string) (*models.UserProfile, error) {
	me, err := c.requireProfile()
	if err != nil {
		return nil, err
	}
	if err := c.loadChatList(me); err != nil {
		return nil, err
	}
	if err := c.App.ChatList.SelectEntry(c.Ctx, chatID); err != nil {
		return nil, err
	}
	return me, nil
}

// loadThread waits for the first snapshot of chatID's message log. Selecting
// the chat already opened it; it is opened here only when nothing follows it.
func (c *CommandContext) loadThread(chatID string) error {
	msgs := c.App.Messages
	changes, unwatch := msgs.Changes()
	defer unwatch()
	if msgs.ChatID() != chatID {
		if err := msgs.OpenThread(c.Ctx, chatID); err != nil {
			return err
		}
	}
	return c.waitUntil(changes, msgs.Loaded, "messages")
}

// counterpartPresence reads the selected counterpart's presence. A failed
// read is logged and shown as unknown.
func (c *CommandContext) counterpartPresence(sel service.Selection) service.PresenceStatus {
	if sel.Counterpart == nil {
		return service.PresenceStatus{}
	}
	status, err := c.App.Session.PresenceOf(c.Ctx, sel.Counterpart.ID)
	if err != nil {
		c.App.Log.Warnw("read counterpart presence", "user_id", sel.Counterpart.ID, "error", err)
		return service.PresenceStatus{}
	}
	return status
}
