package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hijo-electricity/hijo/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI document",
		Long:  `Generate the OpenAPI 3 document describing every route of the API.`,
		Example: `  hijo openapi                                   # print to stdout
  hijo openapi --server https://api.hijo.example -o openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := openapi.Generate(baseURL, versionString())
			if err != nil {
				return err
			}
			if err := doc.Validate(cmd.Context()); err != nil {
				return fmt.Errorf("generated document is invalid: %w", err)
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal openapi: %w", err)
			}
			if outputFile == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(outputFile, data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", outputFile, err)
			}
			fmt.Printf("Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "server", "", "Server URL to list in the document")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the document to file instead of stdout")

	return cmd
}
