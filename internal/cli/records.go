package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aretw0/chainlens/internal/presentation/graph"
	"github.com/aretw0/chainlens/internal/presentation/report"
	"github.com/aretw0/chainlens/internal/presentation/tui"
	"github.com/aretw0/chainlens/pkg/ports"
)

// Output formats of ShowRecord.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatMermaid  = "mermaid"
)

// ListRecords prints one line per record of appID ("" for all), oldest
// first. With asJSON it prints the IDs as a JSON array instead.
func ListRecords(ctx context.Context, w io.Writer, store ports.RecordStore, appID string, asJSON bool) error {
	ids, err := store.List(ctx, appID)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if asJSON {
		return json.NewEncoder(w).Encode(ids)
	}
	if len(ids) == 0 {
		printSystemMessage(w, "No records.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tAPP\tTIME\tCALLS\tDURATION\tSTATUS")
	for _, id := range ids {
		rec, err := store.Load(ctx, id)
		if err != nil {
			// Listed but gone (expired or deleted meanwhile).
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", id, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			rec.RecordID,
			rec.AppID,
			rec.TS.Local().Format(time.DateTime),
			len(rec.Calls),
			rec.Perf.Duration().Round(time.Microsecond),
			tui.Status(rec.MainError != ""),
		)
	}
	return tw.Flush()
}

// ShowRecord prints one record in format.
func ShowRecord(ctx context.Context, w io.Writer, store ports.RecordStore, id, format string, render func(string) (string, error)) error {
	rec, err := store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", id, err)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case FormatMermaid:
		_, err := io.WriteString(w, graph.GenerateMermaid(rec))
		return err
	case FormatMarkdown, "":
		md := report.Markdown(rec)
		if render != nil {
			if md, err = render(md); err != nil {
				return fmt.Errorf("failed to render record: %w", err)
			}
		}
		_, err := io.WriteString(w, md)
		return err
	default:
		return fmt.Errorf("unknown format %q (want %s, %s or %s)", format, FormatMarkdown, FormatJSON, FormatMermaid)
	}
}

// DeleteRecords deletes every record in ids.
func DeleteRecords(ctx context.Context, w io.Writer, store ports.RecordStore, ids ...string) error {
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
		printSystemMessage(w, "Deleted %s.", id)
	}
	return nil
}
