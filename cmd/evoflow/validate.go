package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/evofitmeals/evoflow/pkg/config"
	"github.com/evofitmeals/evoflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidDefinitions = errors.New("invalid workflow definitions")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow definition files",
		ArgsUsage: "<file.json|file.yaml> [file...]",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("validate")

			if command.NArg() == 0 {
				return errors.New("at least one workflow file is required")
			}

			eng, err := newDryRunEngine(ctx, logger, command.String("log-level"))
			if err != nil {
				return err
			}

			defer func() {
				_ = eng.Close(ctx)
			}()

			out := command.Root().Writer
			failures := 0

			for _, path := range command.Args().Slice() {
				workflows, err := config.LoadWorkflows(path)
				if err == nil {
					err = config.ValidateWorkflows(workflows)
				}

				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)

					failures++

					continue
				}

				for _, workflow := range workflows {
					_, err := eng.AddWorkflow(ctx, workflow)
					if err != nil {
						fmt.Fprintf(out, "FAIL %s %s: %v\n", path, workflow.ID, err)

						failures++

						continue
					}

					fmt.Fprintf(out, "OK   %s %s\n", path, workflow.ID)
				}
			}

			if failures > 0 {
				return fmt.Errorf("%w: %d failed", ErrInvalidDefinitions, failures)
			}

			return nil
		},
	}
}
