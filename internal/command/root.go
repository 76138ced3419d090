package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const AppName = "dmclient"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "dmclient - direct messages from the terminal",
		Long:          "dmclient signs in, lists your chats, and sends and follows one-to-one messages.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringP("output", "o", "text", "output format: text, json or yaml")

	cmd.AddCommand(
		NewRegisterCmd(),
		NewLoginCmd(),
		NewLogoutCmd(),
		NewWhoamiCmd(),
		NewFindCmd(),
		NewAddCmd(),
		NewChatsCmd(),
		NewOpenCmd(),
		NewSendCmd(),
		NewBlockCmd(),
		NewWatchCmd(),
	)
	return cmd
}

func Execute() error {
	cmd := NewRootCmd(Version)
	err := cmd.Execute()
	var reported reportedError
	if err != nil && !errors.As(err, &reported) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
	}
	return err
}
