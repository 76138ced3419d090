package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fathima-sithara/dm-client/internal/auth"
	"github.com/fathima-sithara/dm-client/internal/service"
	"github.com/fathima-sithara/dm-client/internal/storage"
)

// reportedError has already been written to stderr.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: "+hint)
	}
	return reportedError{err}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, service.ErrNotSignedIn), errors.Is(err, auth.ErrUnauthorized):
		return "sign in with: " + AppName + " login --email <email> --password <password>"
	case errors.Is(err, service.ErrChatNotFound):
		return "list your chats with: " + AppName + " chats"
	case errors.Is(err, auth.ErrUnavailable):
		return "the auth service is not reachable; try again later"
	case errors.Is(err, storage.ErrUploadTransient):
		return "the upload failed temporarily; send again"
	}
	return ""
}
