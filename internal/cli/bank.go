package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"riqaudio.click/internal/soundbank"
)

func addBankFlag(cmd *cobra.Command, bank *string) {
	cmd.Flags().StringVar(bank, "bank", "", "Sound bank directory or JSON file; arguments become sound names")
}

// soundArgs requires at least one file unless a bank supplies them
func soundArgs(bank *string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if *bank != "" {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	}
}

// resolveSoundPaths returns args as they are without a bank. With a bank the
// args are sound names, and no args selects every sound in the bank.
func (c *CLI) resolveSoundPaths(bank string, args []string) ([]string, error) {
	if bank == "" {
		return args, nil
	}

	resolver, err := soundbank.Open(c.fs, bank)
	if err != nil {
		slog.Error("failed to open sound bank", "bank", bank, "error", err)
		return nil, err
	}

	paths, err := resolver.ResolveAll(args)
	if err != nil {
		return nil, fmt.Errorf("sound bank %s: %w", resolver.GetName(), err)
	}

	slog.Debug("sounds resolved from bank",
		"bank", resolver.GetName(),
		"type", resolver.GetType(),
		"paths", paths)
	return paths, nil
}
