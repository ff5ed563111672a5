package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Sangstbk/liquid-dsp/internal/audio"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := audio.Init(); err != nil {
				return fmt.Errorf("initialize audio: %w", err)
			}
			defer func() { err = multierr.Append(err, audio.Terminate()) }()
			return audio.PrintDevices(cmd.OutOrStdout())
		},
	}
}
