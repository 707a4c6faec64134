package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tvrec/internal/ipc"
)

func newDeviceCommands(ctx *commandContext) []*cobra.Command {
	var recordersJSON bool
	recordersCmd := &cobra.Command{
		Use:   "recorders",
		Short: "List registered recorders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Recorders()
				if err != nil {
					return err
				}
				if recordersJSON {
					return writeJSON(cmd, resp.Recorders)
				}
				out := cmd.OutOrStdout()
				if len(resp.Recorders) == 0 {
					fmt.Fprintln(out, "No recorders registered")
					return nil
				}
				fmt.Fprint(out, recordersTable(resp.Recorders, shouldColorize(out)))
				return nil
			})
		},
	}
	recordersCmd.Flags().BoolVar(&recordersJSON, "json", false, "Output as JSON")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover capture devices now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Discover()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Found %d network and %d local devices\n", resp.Network, resp.Local)
				if len(resp.Registered) > 0 {
					fmt.Fprintf(out, "Registered: %s\n", strings.Join(resp.Registered, ", "))
				}
				for _, msg := range resp.Errors {
					fmt.Fprintf(out, "Error: %s\n", msg)
				}
				return nil
			})
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan <device>",
		Short: "Scan the channels a recorder can receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Found %d channels on %s\n", len(resp.Channels), args[0])
				if len(resp.Channels) > 0 {
					fmt.Fprint(out, channelsTable(resp.Channels))
				}
				return nil
			})
		},
	}

	var channelsJSON bool
	channelsCmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels every recorder can record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Channels()
				if err != nil {
					return err
				}
				if channelsJSON {
					return writeJSON(cmd, resp.Channels)
				}
				out := cmd.OutOrStdout()
				if len(resp.Channels) == 0 {
					fmt.Fprintln(out, "No recordable channels")
					return nil
				}
				fmt.Fprint(out, channelsTable(resp.Channels))
				return nil
			})
		},
	}
	channelsCmd.Flags().BoolVar(&channelsJSON, "json", false, "Output as JSON")

	return []*cobra.Command{recordersCmd, discoverCmd, scanCmd, channelsCmd}
}

func recordersTable(recorders []ipc.RecorderInfo, colorize bool) string {
	rows := make([][]string, 0, len(recorders))
	for _, rec := range recorders {
		state := "idle"
		channel := ""
		switch {
		case rec.Session.Streaming:
			state = "streaming"
			channel = rec.Session.Channel.String()
		case rec.Recording:
			state = "recording"
			channel = rec.Session.Channel.String()
		}
		rows = append(rows, []string{rec.Device, rec.Title, rec.Family, state, channel})
	}
	return renderTable([]column{
		{title: "Device"},
		{title: "Title"},
		{title: "Family"},
		{title: "State", state: true},
		{title: "Channel"},
	}, rows, colorize)
}

func channelsTable(channels []ipc.Channel) string {
	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		freq := ""
		if ch.Frequency > 0 {
			freq = strconv.Itoa(ch.Frequency)
		}
		rows = append(rows, []string{ch.Number, ch.Name, freq})
	}
	return renderTable([]column{
		{title: "Number", numeric: true},
		{title: "Name"},
		{title: "Frequency", numeric: true},
	}, rows, false)
}
