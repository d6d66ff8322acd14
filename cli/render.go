package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"quoteflow/domain"
	"quoteflow/workflow_sync"
)

func renderQuotes(w io.Writer, quotes []domain.Quote) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCUSTOMER\tSTATUS\tAMOUNT\tOWNER\tSTAGE")
	for _, quote := range quotes {
		stage := "-"
		if quote.CurrentStage != nil {
			stage = *quote.CurrentStage
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			quote.Id, quote.Name, quote.CustomerSlug, quote.Status, quote.Amount, quote.Owner, stage)
	}
	tw.Flush()
}

// renderWorkflow prints one block per layer, the current step marked with *.
func renderWorkflow(w io.Writer, workflow *domain.Workflow, layers []workflow_sync.Layer, currentStepId *string) {
	if workflow == nil {
		fmt.Fprintln(w, "No workflow")
		return
	}
	fmt.Fprintf(w, "%s (%s) %s\n", workflow.Name, workflow.Id, workflow.Status)
	if len(layers) == 0 {
		fmt.Fprintln(w, "  no steps")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, layer := range layers {
		fmt.Fprintf(tw, "Stage %d\n", layer.Index)
		for _, step := range layer.Steps {
			marker := " "
			if currentStepId != nil && *currentStepId == step.Id {
				marker = "*"
			}
			persona := "-"
			if step.Persona != nil {
				persona = string(*step.Persona)
			}
			fmt.Fprintf(tw, " %s %d.\t%s\t%s\t%s\t%s\t%s\n",
				marker, step.PositionInLayer, step.Title, step.Assignee, step.Status, persona, step.Id)
		}
	}
	tw.Flush()
}
