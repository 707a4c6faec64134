package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tvrec/internal/ipc"
)

func newListingsCommand(ctx *commandContext) *cobra.Command {
	listingsCmd := &cobra.Command{
		Use:   "listings",
		Short: "Show program data listings and which ones the scheduler uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Listings()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Listings) == 0 {
					fmt.Fprintln(out, "No listings in the lineup file")
					return nil
				}
				rows := make([][]string, 0, len(resp.Listings))
				for _, listing := range resp.Listings {
					rows = append(rows, []string{listing.Name, strconv.Itoa(listing.Channels), yesNo(listing.Configured)})
				}
				fmt.Fprint(out, renderTable([]column{
					{title: "Listing"},
					{title: "Channels", numeric: true},
					{title: "Enabled"},
				}, rows, false))
				return nil
			})
		},
	}
	listingsCmd.AddCommand(newSetListingCommand(ctx, "enable", true))
	listingsCmd.AddCommand(newSetListingCommand(ctx, "disable", false))
	return listingsCmd
}

func newSetListingCommand(ctx *commandContext, verb string, configured bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <listing>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a listing for scheduling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SetListing(args[0], configured); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listing %s %sd\n", args[0], verb)
				return nil
			})
		},
	}
}

func newRulesCommand(ctx *commandContext) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage recording rules",
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recording rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Rules()
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp.Rules)
				}
				out := cmd.OutOrStdout()
				if len(resp.Rules) == 0 {
					fmt.Fprintln(out, "No recording rules")
					return nil
				}
				rows := make([][]string, 0, len(resp.Rules))
				for _, rule := range resp.Rules {
					rows = append(rows, []string{strconv.FormatInt(rule.ID, 10), rule.ShowID, rule.Title, rule.Listing, rule.Channel})
				}
				fmt.Fprint(out, renderTable([]column{
					{title: "ID", numeric: true},
					{title: "Show"},
					{title: "Title"},
					{title: "Listing"},
					{title: "Channel"},
				}, rows, false))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")

	var rule ipc.RecordingRule
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Ask the scheduler to record a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule.Title = args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AddRule(rule)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %d added for %s\n", resp.Rule.ID, resp.Rule.Title)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&rule.ShowID, "show-id", "", "Program identifier from the listings")
	addCmd.Flags().StringVar(&rule.Listing, "listing", "", "Listing the show airs in")
	addCmd.Flags().StringVar(&rule.Channel, "channel", "", "Restrict the rule to one channel")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recording rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.DeleteRule(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %d deleted\n", id)
				return nil
			})
		},
	}

	rulesCmd.AddCommand(listCmd, addCmd, deleteCmd)
	return rulesCmd
}
