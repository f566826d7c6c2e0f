package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/fotoprobe/pkg/catalog"
	"github.com/marmos91/fotoprobe/pkg/config"
	"github.com/marmos91/fotoprobe/pkg/session/store"
)

func newListCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the messages registered in the local library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			m := config.InitializeMetrics(cfg)
			lib, err := config.OpenLibrary(cmd.Context(), cfg, m.Content)
			if err != nil {
				return err
			}
			defer func() { _ = lib.Close() }()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MESSAGE\tCONTENT\tKIND\tMIME\tSIZE\tADDED")
			count := 0
			err = lib.Catalog.List(cmd.Context(), func(e *catalog.Entry) error {
				count++
				_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Ref, e.ContentID, e.Kind, e.MimeType, humanize.IBytes(e.Size), e.AddedAt.Format("2006-01-02 15:04:05"))
				return err
			})
			if err != nil {
				return err
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d message(s)\n", count)
			return err
		},
	}
}

func newRemoveCommand(load configLoader) *cobra.Command {
	var ref probeOptions

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a message and its content from the local library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mref, err := ref.ref()
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			m := config.InitializeMetrics(cfg)
			lib, err := config.OpenLibrary(cmd.Context(), cfg, m.Content)
			if err != nil {
				return err
			}
			defer func() { _ = lib.Close() }()

			entry, err := store.Remove(cmd.Context(), lib.Catalog, lib.Content, mref)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", entry.Ref, entry.ContentID)
			return err
		},
	}
	ref.bindRef(cmd)
	return cmd
}
