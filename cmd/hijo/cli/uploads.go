package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hijo-electricity/hijo/internal/janitor"
)

func newUploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Maintain stored project images",
	}

	cmd.AddCommand(newUploadsSweepCmd())

	return cmd
}

func newUploadsSweepCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored images no project references",
		Long: `Delete project images that no project row references. Images younger than
janitor.grace are kept, since their project may not be saved yet.`,
		Example: `  hijo uploads sweep --dry-run
  hijo uploads sweep`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			logger := newLogger(s)

			st, err := openStore(s)
			if err != nil {
				return err
			}
			defer st.Close()

			provider, err := openProvider(s)
			if err != nil {
				return err
			}

			jan := janitor.New(st, provider, janitor.Config{
				Grace:  s.Janitor.Grace,
				DryRun: dryRun,
			}, logger)
			res, err := jan.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, key := range res.Removed {
				fmt.Printf("  %s\n", key)
			}
			fmt.Printf("%s %d of %d stored images", verb, len(res.Removed), res.Scanned)
			if res.Failed > 0 {
				fmt.Printf(" (%d failed)", res.Failed)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list what would be removed")

	return cmd
}
