package main

import (
	"context"
	"fmt"

	"quoteflow/domain"
	"quoteflow/workflow_sync"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
)

func NewWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:  "workflow",
		Usage: "Show the approval workflow of a quote",
		Flags: []cli.Flag{quoteFlag()},
		Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
			return nil
		}),
	}
}

// stepFieldFlags are shared by the commands that create steps.
func stepFieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Required: true},
		&cli.StringFlag{Name: "assignee", Required: true},
		&cli.StringFlag{Name: "status", Value: string(domain.StepStatusPending)},
		&cli.StringFlag{Name: "persona"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "due-date", Usage: "YYYY-MM-DD"},
	}
}

func stepFieldsFromCommand(cmd *cli.Command) domain.StepFields {
	fields := domain.StepFields{
		Title:    cmd.String("title"),
		Assignee: cmd.String("assignee"),
		Status:   domain.StepStatus(cmd.String("status")),
	}
	if cmd.IsSet("persona") {
		persona := domain.Persona(cmd.String("persona"))
		fields.Persona = &persona
	}
	if cmd.IsSet("description") {
		description := cmd.String("description")
		fields.Description = &description
	}
	if cmd.IsSet("due-date") {
		dueDate := cmd.String("due-date")
		fields.DueDate = &dueDate
	}
	return fields
}

// stepUpdateFromCommand includes only the flags given on the command line.
// An empty value clears a nullable field.
func stepUpdateFromCommand(cmd *cli.Command) domain.StepUpdate {
	var update domain.StepUpdate
	if cmd.IsSet("title") {
		update.Title = domain.Some(cmd.String("title"))
	}
	if cmd.IsSet("assignee") {
		update.Assignee = domain.Some(cmd.String("assignee"))
	}
	if cmd.IsSet("status") {
		update.Status = domain.Some(domain.StepStatus(cmd.String("status")))
	}
	update.Persona = nullableFlag[domain.Persona](cmd, "persona")
	update.Description = nullableFlag[string](cmd, "description")
	update.DueDate = nullableFlag[string](cmd, "due-date")
	update.CompletedDate = nullableFlag[string](cmd, "completed-date")
	update.AssigneeAvatar = nullableFlag[string](cmd, "assignee-avatar")
	return update
}

func nullableFlag[T ~string](cmd *cli.Command, name string) domain.Optional[T] {
	if !cmd.IsSet(name) {
		return domain.Optional[T]{}
	}
	if value := cmd.String(name); value != "" {
		return domain.Some(T(value))
	}
	return domain.Null[T]()
}

func NewStepCommand() *cli.Command {
	return &cli.Command{
		Name:  "step",
		Usage: "Change the steps of a quote's workflow",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a step at the end of a stage",
				Flags: append([]cli.Flag{
					quoteFlag(),
					&cli.IntFlag{Name: "layer", Value: workflow_sync.NewLayer, Usage: "Stage index, a new last stage by default"},
				}, stepFieldFlags()...),
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					_, err := session.AddStep(ctx, int(cmd.Int("layer")), stepFieldsFromCommand(cmd))
					return err
				}),
			},
			{
				Name:  "insert",
				Usage: "Add a parallel step directly above or below another one",
				Flags: append([]cli.Flag{
					quoteFlag(),
					&cli.StringFlag{Name: "relative-to", Usage: "Id of the neighbouring step", Required: true},
					&cli.StringFlag{Name: "placement", Value: string(workflow_sync.PlacementBelow), Usage: "above or below"},
				}, stepFieldFlags()...),
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					placement, err := workflow_sync.StringToPlacement(cmd.String("placement"))
					if err != nil {
						return err
					}
					_, err = session.AddParallelStep(ctx, cmd.String("relative-to"), placement, stepFieldsFromCommand(cmd))
					return err
				}),
			},
			{
				Name:  "update",
				Usage: "Change fields of a step",
				Flags: []cli.Flag{
					quoteFlag(),
					stepFlag(),
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "assignee"},
					&cli.StringFlag{Name: "assignee-avatar"},
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "persona"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "due-date"},
					&cli.StringFlag{Name: "completed-date"},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					_, err := session.UpdateStep(ctx, cmd.String("step"), stepUpdateFromCommand(cmd))
					return err
				}),
			},
			{
				Name:  "edit",
				Usage: "Edit a text field the way the editor does, sending it after the edit debounce",
				Flags: []cli.Flag{
					quoteFlag(),
					stepFlag(),
					&cli.StringFlag{Name: "field", Usage: "title, assignee or description", Required: true},
					&cli.StringFlag{Name: "value", Required: true},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					return session.EditStepField(cmd.String("step"), domain.StepTextField(cmd.String("field")), cmd.String("value"))
				}),
			},
			{
				Name:  "delete",
				Usage: "Delete a step",
				Flags: []cli.Flag{
					quoteFlag(),
					stepFlag(),
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					stepId := cmd.String("step")
					step, ok := session.Step(stepId)
					if !ok {
						return fmt.Errorf("no step %s in this workflow", stepId)
					}
					if !cmd.Bool("yes") {
						confirmed := false
						err := huh.NewConfirm().
							Title(fmt.Sprintf("Delete step %q?", step.Title)).
							Value(&confirmed).
							Affirmative("Yes").
							Negative("No").
							Run()
						if err != nil {
							return err
						}
						if !confirmed {
							return nil
						}
					}
					return session.DeleteStep(ctx, stepId)
				}),
			},
			{
				Name:  "move",
				Usage: "Move a step to another place, within its stage or into another one",
				Flags: []cli.Flag{
					quoteFlag(),
					stepFlag(),
					&cli.IntFlag{Name: "layer", Required: true},
					&cli.IntFlag{Name: "position", Required: true},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					return session.MoveStep(ctx, cmd.String("step"), int(cmd.Int("layer")), int(cmd.Int("position")))
				}),
			},
		},
	}
}

func NewLayerCommand() *cli.Command {
	return &cli.Command{
		Name:  "stages",
		Usage: "Reorder the stages of a quote's workflow",
		Commands: []*cli.Command{
			{
				Name:  "swap",
				Usage: "Swap two stages",
				Flags: []cli.Flag{
					quoteFlag(),
					&cli.IntFlag{Name: "a", Required: true},
					&cli.IntFlag{Name: "b", Required: true},
				},
				Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
					return session.SwapLayers(ctx, int(cmd.Int("a")), int(cmd.Int("b")))
				}),
			},
		},
	}
}

func NewStageCommand() *cli.Command {
	return &cli.Command{
		Name:  "current-stage",
		Usage: "Mark the step a quote is currently at, or clear it when --step is omitted",
		Flags: []cli.Flag{
			quoteFlag(),
			&cli.StringFlag{Name: "step", Aliases: []string{"s"}, Usage: "Step id"},
		},
		Action: withSession(func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error {
			if !cmd.IsSet("step") {
				session.UpdateCurrentStage(nil)
				return nil
			}
			stepId := cmd.String("step")
			if _, ok := session.Step(stepId); !ok {
				return fmt.Errorf("no step %s in this workflow", stepId)
			}
			session.UpdateCurrentStage(&stepId)
			return nil
		}),
	}
}
