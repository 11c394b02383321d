package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fmueller/voxnote/internal/history"
	"github.com/fmueller/voxnote/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const createdLayout = "2006-01-02 15:04:05"

func newListCmd(app *appState) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := app.browser()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printRecordings(out, b.Entries()); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			st, err := app.openStore()
			if err != nil {
				return err
			}
			app.log().Info("watching for changes; press Ctrl-C to exit", zap.String("store", st.Root()))
			return st.Watch(cmd.Context(), func() {
				fmt.Fprintf(out, "\n-- updated %s --\n", app.now().Format("15:04:05"))
				if err := printRecordings(out, b.Entries()); err != nil {
					app.log().Warn("print recordings failed", zap.Error(err))
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and reprint when recordings change")
	return cmd
}

func printRecordings(out io.Writer, recs []store.Recording) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(out, "No recordings found")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCREATED\tTRANSCRIPT")
	for _, rec := range recs {
		transcript := "-"
		if rec.HasTranscription {
			transcript = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.FolderID, rec.Title, rec.CreatedAt.Local().Format(createdLayout), transcript)
	}
	return tw.Flush()
}

func newShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recording and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.browser()
			if err != nil {
				return err
			}

			detail, err := b.Detail(args[0])
			if err != nil {
				return err
			}
			return printDetail(cmd.OutOrStdout(), detail)
		},
	}
}

func printDetail(out io.Writer, d history.Detail) error {
	rec := d.Recording

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", rec.Title)
	fmt.Fprintf(tw, "ID:\t%s\n", rec.FolderID)
	fmt.Fprintf(tw, "Created:\t%s\n", rec.CreatedAt.Local().Format(createdLayout))
	fmt.Fprintf(tw, "Audio:\t%s\n", rec.AudioPath)
	if d.AudioErr != nil {
		fmt.Fprintf(tw, "Format:\tunreadable (%v)\n", d.AudioErr)
	} else {
		fmt.Fprintf(tw, "Duration:\t%s\n", d.Audio.Duration.Round(100*time.Millisecond))
		fmt.Fprintf(tw, "Format:\t%d Hz, %d ch, %d-bit\n", d.Audio.SampleRate, d.Audio.Channels, d.Audio.BitDepth)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if !rec.HasTranscription {
		_, err := fmt.Fprintf(out, "No transcript. Run `voxnote retry %s` to transcribe it.\n", rec.FolderID)
		return err
	}
	_, err := fmt.Fprintln(out, d.Transcript)
	return err
}

func newRenameCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change the title of a recording",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.browser()
			if err != nil {
				return err
			}

			rec, err := b.Rename(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", rec.FolderID, rec.Title)
			return nil
		},
	}
}

func newDeleteCmd(app *appState) *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return errors.New("pass either recording ids or --all, not both")
			case !all && len(args) == 0:
				return errors.New("requires at least 1 recording id, or --all")
			}

			b, err := app.browser()
			if err != nil {
				return err
			}

			question := fmt.Sprintf("Delete %d recording(s)?", len(args))
			if all {
				question = fmt.Sprintf("Delete all %d recording(s)?", len(b.Entries()))
			}
			if !yes {
				ok, err := app.confirm(question)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted")
					return nil
				}
			}

			if all {
				if err := b.DeleteAll(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted all recordings")
				return nil
			}

			if err := b.Delete(args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", strings.Join(args, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every recording")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCopyCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a recording's transcript to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.browser()
			if err != nil {
				return err
			}

			text, err := b.Transcript(args[0])
			if err != nil {
				return err
			}
			if err := app.copyText(cmd.Context(), text); err != nil {
				return err
			}
			app.log().Info("transcript copied to clipboard", zap.String("folder_id", args[0]))
			return nil
		},
	}
}

func newRetryCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Transcribe an existing recording again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.retry(cmd.Context(), args[0])
		},
	}
}

func (a *appState) retry(ctx context.Context, folderID string) error {
	ctrl, err := a.controller(false)
	if err != nil {
		return err
	}

	stopSpinner := a.spinner("Transcribing")
	snap, err := ctrl.Retranscribe(ctx, folderID)
	stopSpinner()
	if err != nil {
		return a.failedSession(snap, err)
	}

	a.deliverTranscript(ctx, snap.Transcript)
	return nil
}
