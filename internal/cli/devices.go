package cli

import (
	"fmt"
	"runtime"

	"github.com/fmueller/voxnote/internal/capture"
	"github.com/spf13/cobra"
)

func newDevicesCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := capture.DefaultBackends(runtime.GOOS)
			if len(backends) == 0 {
				return unsupportedOS()
			}

			out := cmd.OutOrStdout()
			for _, backend := range backends {
				fmt.Fprintf(out, "== %s ==\n", backend.Name())
				if !backend.Available() {
					fmt.Fprintln(out, "not available on PATH")
					fmt.Fprintln(out)
					continue
				}

				listing, err := backend.ListDevices(cmd.Context())
				if err != nil {
					fmt.Fprintf(out, "failed to list devices: %v\n\n", err)
					continue
				}

				if listing == "" {
					fmt.Fprintln(out, "no output")
					fmt.Fprintln(out)
					continue
				}

				fmt.Fprintln(out, listing)
				fmt.Fprintln(out)
			}

			selected, err := capture.SelectBackend(backends, app.cfg.Backend)
			if err != nil {
				fmt.Fprintf(out, "recording backend (%s): none, %v\n", app.cfg.Backend, err)
				return nil
			}
			fmt.Fprintf(out, "recording backend (%s): %s\n", app.cfg.Backend, selected.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&app.flags.backend, "backend", app.flags.backend, "Backend to check: auto|sox|pw-record|arecord|ffmpeg")
	return cmd
}
