package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evofitmeals/evoflow/pkg/config"
	"github.com/evofitmeals/evoflow/pkg/log"
	"github.com/evofitmeals/evoflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run one workflow once with dry-run actions and print the execution (disabled definitions included)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Workflow definition file, JSON or YAML (one workflow or a list)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "workflow-id",
				Aliases: []string{"w"},
				Usage:   "Workflow to run when the file holds several",
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "JSON object passed as the run input",
				Value:   "{}",
			},
			&cli.BoolFlag{
				Name:  "with-defaults",
				Usage: "Register the built-in workflows so nested references resolve",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("run")

			workflows, err := config.LoadWorkflows(command.String("file"))
			if err != nil {
				return err
			}

			workflowID, err := pickWorkflow(workflows, command.String("workflow-id"))
			if err != nil {
				return err
			}

			var input map[string]any

			err = json.Unmarshal([]byte(command.String("input")), &input)
			if err != nil {
				return fmt.Errorf("invalid --input: %w", err)
			}

			eng, err := newDryRunEngine(ctx, logger, command.String("log-level"))
			if err != nil {
				return err
			}

			defer func() {
				_ = eng.Close(ctx)
			}()

			for _, workflow := range workflows {
				workflow.Enabled = true

				if _, err := eng.AddWorkflow(ctx, workflow); err != nil {
					return err
				}
			}

			if command.Bool("with-defaults") {
				if err := eng.RegisterDefaultWorkflows(ctx); err != nil {
					return err
				}
			}

			execution, err := eng.RunManual(ctx, workflowID, input, "")
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(execution)
		},
	}
}

func pickWorkflow(workflows []*models.Workflow, workflowID string) (string, error) {
	if workflowID != "" {
		for _, workflow := range workflows {
			if workflow.ID == workflowID {
				return workflowID, nil
			}
		}

		return "", fmt.Errorf("workflow %q is not defined in the file", workflowID)
	}

	if len(workflows) != 1 {
		return "", errors.New("the file holds several workflows, pick one with --workflow-id")
	}

	if workflows[0].ID == "" {
		return "", errors.New("the workflow needs an id to be run")
	}

	return workflows[0].ID, nil
}
