package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/fotoprobe/pkg/config"
	"github.com/marmos91/fotoprobe/pkg/content"
	"github.com/marmos91/fotoprobe/pkg/session/store"
)

func newIngestCommand(load configLoader) *cobra.Command {
	var (
		ref       probeOptions
		mimeType  string
		contentID string
		document  bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Add a file to the local library as a media message",
		Long: `Copy FILE into the configured content store and register it in the
catalog under the given message, so "probe" and "serve" with the store
session can find it. A message or content ID already in the library is
only replaced with --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mref, err := ref.ref()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
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

			entry, err := store.Ingest(cmd.Context(), lib.Catalog, lib.Content, mref, data, store.IngestOptions{
				ContentID: content.ContentID(contentID),
				MimeType:  mimeType,
				Document:  document,
				Replace:   force,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s as %s (%s, %s, %s)\n",
				entry.Ref, entry.ContentID, entry.Kind, entry.MimeType, humanize.IBytes(entry.Size))
			return err
		},
	}

	ref.bindRef(cmd)
	f := cmd.Flags()
	f.StringVar(&mimeType, "mime", "", "MIME type (sniffed when empty)")
	f.StringVar(&contentID, "content-id", "", "content store key (default <peer>/<peer id>/<message id>)")
	f.BoolVar(&document, "document", false, "register as a file attachment rather than a photo")
	f.BoolVarP(&force, "force", "f", false, "replace an existing message or content ID")
	return cmd
}
