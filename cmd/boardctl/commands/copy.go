package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coaching-backend/internal/clipboard"
)

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy FIXTURE",
		Short: "Copy a fixture's shapes to the system clipboard",
		Long: `Copy every shape of a fixture to the system clipboard as a canvas
payload. Pasting on a board re-centers the group on the cursor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clipboard.SystemAvailable() {
				return fmt.Errorf("no system clipboard available")
			}
			fixture, err := LoadFixture(args[0])
			if err != nil {
				return err
			}
			shapes, err := fixture.Shapes()
			if err != nil {
				return err
			}
			payload, err := clipboard.NewPayload(shapes, time.Now())
			if err != nil {
				return err
			}
			if err := (clipboard.System{}).Write(cmd.Context(), payload); err != nil {
				return err
			}
			success(cmd.ErrOrStderr(), "copied %d shapes", len(payload.Shapes))
			return nil
		},
	}
}
