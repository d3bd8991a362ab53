package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pomflow/backend/internal/pipeline"
	"pomflow/backend/internal/render"
	"pomflow/backend/internal/services"
	"pomflow/backend/pkg/models"
)

// statusOutput is the machine-readable form of the status command.
type statusOutput struct {
	State pipeline.State      `json:"state"`
	View  []pipeline.NodeView `json:"view"`
}

func newProjectsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := a.backend.ListProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if a.output != outputText {
				return encode(cmd.OutOrStdout(), a.output, projects)
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Projects(projects))
			return nil
		},
	}
}

func newCreateCommand(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name> <file>...",
		Short: "Create a project by uploading source files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []services.UploadFile
			for _, path := range args[1:] {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()
				files = append(files, services.UploadFile{Name: filepath.Base(path), Content: f})
			}

			project, err := a.backend.CreateProject(cmd.Context(), args[0], description, files)
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}
			if a.output != outputText {
				return encode(cmd.OutOrStdout(), a.output, project)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", project.Name, project.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "project description")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "status <project>",
		Short: "Show the pipeline of a project",
		Long: `Evaluate the five pipeline stages of a project. --section
selects the highlighted stage the way the dashboard does
(elements, pom, tests, executions).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := a.evaluator.Evaluate(cmd.Context(), args[0], section)
			if a.output != outputText {
				return encode(cmd.OutOrStdout(), a.output, statusOutput{State: state, View: pipeline.View(state)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Pipeline(state))
			return nil
		},
	}
	cmd.Flags().StringVarP(&section, "section", "s", pipeline.SectionOverview, "dashboard section being viewed")
	return cmd
}

func newScanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <project>",
		Short: "Scan the project source for UI elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.workflow.Scan(cmd.Context(), args[0])
			return a.printAction(cmd, resp, err)
		},
	}
}

func newPomCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pom <project>",
		Short: "Generate a page object model from the scanned elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.workflow.GeneratePom(cmd.Context(), args[0])
			return a.printAction(cmd, resp, err)
		},
	}
}

func newTestsCommand(a *app) *cobra.Command {
	var pomID string
	cmd := &cobra.Command{
		Use:   "tests <project>",
		Short: "Generate test cases against a POM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.workflow.GenerateTests(cmd.Context(), args[0], pomID)
			return a.printAction(cmd, resp, err)
		},
	}
	cmd.Flags().StringVar(&pomID, "pom", "", "POM to generate from (default: most recent)")
	return cmd
}

func newExecuteCommand(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "execute <project> <test>",
		Short: "Run a generated test case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID, testID := args[0], args[1]
			if !wait {
				resp, err := a.workflow.ExecuteTest(ctx, projectID, testID)
				return a.printAction(cmd, resp, err)
			}

			before, err := a.backend.ListExecutions(ctx, projectID)
			if err != nil {
				return fmt.Errorf("failed to read executions: %w", err)
			}
			if _, err := a.workflow.ExecuteTest(ctx, projectID, testID); err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(ctx, a.cfg.Pipeline.WaitTimeout)
			defer cancel()
			execution, err := a.workflow.WaitForExecution(waitCtx, projectID, len(before), a.pollInterval())
			if err != nil {
				return err
			}
			return a.printExecution(cmd, execution)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the execution record")
	return cmd
}

func newCodeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "code <test>",
		Short: "Print the generated script of a test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.backend.GetTestCode(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get test code: %w", err)
			}
			if a.output != outputText {
				return encode(cmd.OutOrStdout(), a.output, code)
			}
			fmt.Fprintln(cmd.OutOrStdout(), code.Code)
			return nil
		},
	}
}

func (a *app) printAction(cmd *cobra.Command, resp *models.ActionResponse, err error) error {
	if err != nil {
		return err
	}
	if a.output != outputText {
		return encode(cmd.OutOrStdout(), a.output, resp)
	}

	out := cmd.OutOrStdout()
	message := resp.Message
	if message == "" {
		message = "accepted"
	}
	fmt.Fprintln(out, message)
	if resp.ElementsCount != nil {
		fmt.Fprintf(out, "Elements: %d\n", *resp.ElementsCount)
	}
	if resp.PomID != "" {
		fmt.Fprintf(out, "POM: %s\n", resp.PomID)
	}
	if resp.TestID != "" {
		fmt.Fprintf(out, "Test: %s\n", resp.TestID)
	}
	if resp.ExecutionID != "" {
		fmt.Fprintf(out, "Execution: %s (%s)\n", resp.ExecutionID, resp.Status)
	}
	return nil
}

func (a *app) printExecution(cmd *cobra.Command, execution *models.Execution) error {
	if a.output != outputText {
		return encode(cmd.OutOrStdout(), a.output, execution)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Execution %s: %s\n", execution.ID, execution.Status)
	for _, result := range execution.Result.Tests {
		fmt.Fprintf(out, "  %-8s %s\n", result.Status, result.Name)
	}
	if !execution.Succeeded() {
		return fmt.Errorf("execution %s finished with status %s", execution.ID, execution.Status)
	}
	return nil
}
