package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/fotoprobe/pkg/config"
	"github.com/marmos91/fotoprobe/pkg/exif"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

type probeOptions struct {
	peer       string
	peerID     int64
	accessHash int64
	messageID  int64
	tags       bool
	jsonOutput bool
}

func newProbeCommand(load configLoader) *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Retrieve the metadata of one media message",
		Example: `  # photo message 1001 in basic group 42
  fotoprobe probe --peer chat --peer-id 42 --message 1001

  # every decoded tag, as JSON
  fotoprobe probe --peer channel --peer-id 1234 --access-hash 99 --message 7 --tags --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := opts.ref()
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			m := config.InitializeMetrics(cfg)

			var outcome *retrieval.Outcome
			err = config.RunSession(cmd.Context(), cfg, m.Content, func(ctx context.Context, s retrieval.Session) error {
				o, err := config.NewOrchestrator(cfg, s, m.Retrieval)
				if err != nil {
					return err
				}
				outcome = o.RetrieveMessage(ctx, ref)
				return nil
			})
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				err = writeOutcomeJSON(cmd.OutOrStdout(), outcome, opts.tags)
			} else {
				err = writeOutcome(cmd.OutOrStdout(), outcome, opts.tags)
			}
			if err != nil {
				return err
			}
			if outcome.Status == retrieval.StatusFailed {
				return fmt.Errorf("retrieval failed: %s", outcome.Kind)
			}
			return nil
		},
	}

	opts.bindRef(cmd)
	f := cmd.Flags()
	f.BoolVar(&opts.tags, "tags", false, "list every decoded tag")
	f.BoolVar(&opts.jsonOutput, "json", false, "print the outcome as JSON")
	return cmd
}

// bindRef registers the message reference flags on cmd.
func (o *probeOptions) bindRef(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.peer, "peer", "user", "peer kind: user, chat or channel")
	f.Int64Var(&o.peerID, "peer-id", 0, "peer identifier")
	f.Int64Var(&o.accessHash, "access-hash", 0, "peer access hash")
	f.Int64Var(&o.messageID, "message", 0, "message identifier")
	_ = cmd.MarkFlagRequired("message")
}

func (o probeOptions) ref() (retrieval.MessageRef, error) {
	peer, err := retrieval.ParsePeerKind(o.peer)
	if err != nil {
		return retrieval.MessageRef{}, err
	}
	if o.messageID <= 0 {
		return retrieval.MessageRef{}, fmt.Errorf("--message must be positive, got %d", o.messageID)
	}
	return retrieval.MessageRef{
		Peer:       peer,
		PeerID:     o.peerID,
		AccessHash: o.accessHash,
		MessageID:  o.messageID,
	}, nil
}

func writeOutcome(w io.Writer, o *retrieval.Outcome, tags bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Status:\t%s\n", o.Status)
	fmt.Fprintf(tw, "Retrieval:\t%s\n", o.RetrievalID)
	fmt.Fprintf(tw, "Read:\t%s in %d window(s), %d attempt(s)\n", humanize.IBytes(o.BytesRead), len(o.Windows), o.Attempts)
	fmt.Fprintf(tw, "Elapsed:\t%s\n", o.Elapsed.Round(time.Millisecond))

	switch o.Status {
	case retrieval.StatusNotPresent:
		if o.Detail != "" {
			fmt.Fprintf(tw, "Detail:\t%s\n", o.Detail)
		}
	case retrieval.StatusIncomplete:
		fmt.Fprintf(tw, "Reason:\t%s\n", o.Reason)
	case retrieval.StatusFailed:
		fmt.Fprintf(tw, "Error:\t%s: %v\n", o.Kind, o.Err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if o.Status != retrieval.StatusSuccess {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\n%s\n", exif.Summarize(o.Record).Caption()); err != nil {
		return err
	}
	if !tags {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range o.Record.Names() {
		v, _ := o.Record.Get(name)
		fmt.Fprintf(tw, "%s\t%s\n", name, v)
	}
	return tw.Flush()
}

type outcomeJSON struct {
	Status      string            `json:"status"`
	RetrievalID string            `json:"retrieval_id"`
	BytesRead   uint64            `json:"bytes_read"`
	Windows     int               `json:"windows"`
	Attempts    int               `json:"attempts"`
	ElapsedMS   int64             `json:"elapsed_ms"`
	Kind        string            `json:"kind,omitempty"`
	Error       string            `json:"error,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Detail      string            `json:"detail,omitempty"`
	Summary     *exif.Summary     `json:"summary,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

func writeOutcomeJSON(w io.Writer, o *retrieval.Outcome, tags bool) error {
	out := outcomeJSON{
		Status:      o.Status.String(),
		RetrievalID: o.RetrievalID,
		BytesRead:   o.BytesRead,
		Windows:     len(o.Windows),
		Attempts:    o.Attempts,
		ElapsedMS:   o.Elapsed.Milliseconds(),
		Reason:      o.Reason,
		Detail:      o.Detail,
	}
	if o.Status == retrieval.StatusFailed {
		out.Kind = o.Kind.String()
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
	}
	if o.Status == retrieval.StatusSuccess {
		s := exif.Summarize(o.Record)
		out.Summary = &s
		if tags {
			out.Tags = make(map[string]string, o.Record.Len())
			for _, name := range o.Record.Names() {
				v, _ := o.Record.Get(name)
				out.Tags[name] = v.String()
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
