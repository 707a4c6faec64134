package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tvrec/internal/ipc"
)

func newRecordingCommands(ctx *commandContext) []*cobra.Command {
	var (
		statuses   []string
		jsonOutput bool
	)
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "List recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Recordings(statuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Recordings)
				}
				out := cmd.OutOrStdout()
				if len(resp.Recordings) == 0 {
					fmt.Fprintln(out, "No recordings")
					return nil
				}
				fmt.Fprint(out, recordingsTable(resp.Recordings, shouldColorize(out)))
				return nil
			})
		},
	}
	recordingsCmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show recordings with these statuses")
	recordingsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	var (
		recordDevice   string
		recordChannel  string
		recordDuration time.Duration
		recordTitle    string
		recordShowID   string
	)
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Start recording a channel now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(recordDevice) == "" || strings.TrimSpace(recordChannel) == "" {
				return fmt.Errorf("--device and --channel are required")
			}
			if recordDuration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Record(ipc.RecordRequest{
					Device:          recordDevice,
					Channel:         recordChannel,
					DurationSeconds: int(recordDuration / time.Second),
					Title:           recordTitle,
					ShowID:          recordShowID,
				})
				if err != nil {
					return err
				}
				rec := resp.Recording
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recording %s started on %s (channel %s)\n", rec.ID, rec.Device, rec.Channel)
				fmt.Fprintf(out, "Writing to %s\n", rec.DestinationFile)
				return nil
			})
		},
	}
	recordCmd.Flags().StringVar(&recordDevice, "device", "", "Recorder device key (see `tvrec recorders`)")
	recordCmd.Flags().StringVar(&recordChannel, "channel", "", "Channel number to record")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 30*time.Minute, "How long to record")
	recordCmd.Flags().StringVar(&recordTitle, "title", "", "Recording title")
	recordCmd.Flags().StringVar(&recordShowID, "show-id", "", "Program identifier from the listings")

	stopCmd := &cobra.Command{
		Use:   "stop-recording <id>",
		Short: "Stop a running recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StopRecording(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording %s stopped\n", args[0])
				return nil
			})
		},
	}

	var allowRerecord bool
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recording and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RemoveRecording(args[0], allowRerecord); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording %s deleted\n", args[0])
				return nil
			})
		},
	}
	deleteCmd.Flags().BoolVar(&allowRerecord, "rerecord", false, "Allow the scheduler to record the show again")

	var (
		overrideTitle   string
		overrideChannel string
		overrideStatus  string
	)
	overrideCmd := &cobra.Command{
		Use:   "override <show-id>",
		Short: "Flip whether an upcoming airing will be recorded",
		Long: "Flip whether an upcoming airing will be recorded. --status is the airing's\n" +
			"current status: previously_recorded allows it to be recorded again, any\n" +
			"other status marks the show as recorded so the scheduler skips it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				_, err := client.Override(ipc.OverrideRequest{
					ShowID:  args[0],
					Title:   overrideTitle,
					Channel: overrideChannel,
					Status:  overrideStatus,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Override for %s applied\n", args[0])
				return nil
			})
		},
	}
	overrideCmd.Flags().StringVar(&overrideTitle, "title", "", "Show title")
	overrideCmd.Flags().StringVar(&overrideChannel, "channel", "", "Channel number of the airing")
	overrideCmd.Flags().StringVar(&overrideStatus, "status", "will_record", "Current status of the airing")

	return []*cobra.Command{recordingsCmd, recordCmd, stopCmd, deleteCmd, overrideCmd}
}

func recordingsTable(recordings []ipc.Recording, colorize bool) string {
	rows := make([][]string, 0, len(recordings))
	for _, rec := range recordings {
		rows = append(rows, []string{
			rec.ID,
			rec.Title,
			rec.Device,
			rec.Channel.String(),
			rec.StartTime.Local().Format(time.DateTime),
			(time.Duration(rec.DurationSeconds) * time.Second).String(),
			string(rec.Status),
		})
	}
	return renderTable([]column{
		{title: "ID"},
		{title: "Title"},
		{title: "Device"},
		{title: "Channel"},
		{title: "Start"},
		{title: "Duration", numeric: true},
		{title: "Status", state: true},
	}, rows, colorize)
}
