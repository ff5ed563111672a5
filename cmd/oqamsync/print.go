package main

import (
	"github.com/spf13/cobra"

	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

func newPrintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the synchronizer parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := modem.NewSynchronizer(a.cfg.ToModem(), func([]complex128) modem.Disposition {
				return modem.Continue
			}, modem.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer s.Close()
			s.Print(cmd.OutOrStdout())
			return nil
		},
	}
}
