package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

func newIngestCommand(svc Services) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Chunk and index a policy document",
		Long: `Reads a .pdf, .txt or .md file, replaces any chunks previously indexed
for the same file id and prints the number of chunks written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireService(svc.Ingestor, "ingest service"); err != nil {
				return err
			}
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open document: %w", err)
			}
			defer file.Close()

			result, err := svc.Ingestor.Ingest(cmd.Context(), filepath.Base(path), file)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			if asJSON {
				return printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s as %s (%d chunks)\n", result.Filename, result.FileID, result.ChunkCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output result as JSON")
	return cmd
}

func newAskCommand(svc Services) *cobra.Command {
	var (
		fileID string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about one ingested document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireService(svc.Answerer, "answer service"); err != nil {
				return err
			}
			answer, err := svc.Answerer.Answer(cmd.Context(), fileID, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			if asJSON {
				return printJSON(cmd, answer)
			}
			printAnswer(cmd, answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "file id returned by ingest")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output answer as JSON")
	_ = cmd.MarkFlagRequired("file-id")
	return cmd
}

func newControlsCommand(svc Services) *cobra.Command {
	var (
		asJSON bool
		xlsx   string
	)
	cmd := &cobra.Command{
		Use:   "controls",
		Short: "List the compliance controls the reviewer recognises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireService(svc.Catalog, "control catalog"); err != nil {
				return err
			}
			controls := make([]domain.Control, 0)
			for _, id := range svc.Catalog.IDs() {
				if c, ok := svc.Catalog.Lookup(id); ok {
					controls = append(controls, c)
				}
			}
			if xlsx != "" {
				if svc.ExportControls == nil {
					return errors.New("control export not configured")
				}
				if err := svc.ExportControls(xlsx, controls); err != nil {
					return fmt.Errorf("export controls: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d controls to %s\n", len(controls), xlsx)
				return nil
			}
			if asJSON {
				return printJSON(cmd, controls)
			}
			for _, c := range controls {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", c.ID, c.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output controls as JSON")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "write controls to an .xlsx statement of applicability")
	return cmd
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
	if answer.ControlID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nControl: %s\n", answer.ControlID)
	}
	if len(answer.ChunksUsed) == 0 {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Sources:")
	for i, c := range answer.ChunksUsed {
		page := "-"
		if c.Page != nil {
			page = fmt.Sprint(*c.Page)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] p.%s %s\n", i+1, page, c.Snippet)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
