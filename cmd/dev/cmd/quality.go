package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests against the simulated bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Test()
			if err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run integration tests (needs an attached adapter)",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Integ()
			if err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
	return cmd
}

// DemoCmd runs the interleaved device demo of regctl, on the simulated bus unless --bus says otherwise.
func DemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run regctl demo with color, temperature and eeprom transactions on one bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, err := cmd.Flags().GetString("bus")
			if err != nil {
				return fmt.Errorf("could not get bus flag: %w", err)
			}
			config, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}
			runArgs := []string{"run", "./cmd/regctl", "--bus", bus}
			if config != "" {
				runArgs = append(runArgs, "--config", config)
			}
			runArgs = append(runArgs, "demo")
			slog.Info("running demo", "bus", bus)
			run := exec.CommandContext(cmd.Context(), "go", runArgs...)
			run.Stdout = os.Stdout
			run.Stderr = os.Stderr
			if err := run.Run(); err != nil {
				return fmt.Errorf("demo failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("bus", "sim", "bus kind passed to regctl")
	cmd.Flags().String("config", "", "regctl configuration file")
	return cmd
}
