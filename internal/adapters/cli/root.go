// Package cli implements the policyctl command tree.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

// Services are the use cases behind the commands.
type Services struct {
	Ingestor ports.DocumentIngestor
	Answerer ports.PolicyQuestionAnswerer
	Catalog  ports.ControlCatalog
	// ExportControls writes controls to a workbook for `controls --xlsx`.
	ExportControls func(path string, controls []domain.Control) error
}

func NewRootCommand(svc Services) *cobra.Command {
	root := &cobra.Command{
		Use:   "policyctl",
		Short: "Ingest policy documents and ask grounded questions about them",
		Long: `policyctl drives the policy reviewer from the command line.

Documents are chunked, embedded and indexed under a file id derived from
the file name. Questions are answered from the indexed text of a single
document only, with page-level citations.`,
		SilenceUsage: true,
	}
	root.AddCommand(newIngestCommand(svc), newAskCommand(svc), newControlsCommand(svc))
	return root
}

func requireService(v any, name string) error {
	if v == nil {
		return errors.New(name + " not configured")
	}
	return nil
}
