// Package report renders records as Markdown for terminals and docs.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/chainlens/internal/presentation/graph"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/record"
)

// Markdown renders rec: a summary, the main input and output, and a call
// table indented by depth listing argument names.
func Markdown(rec *domain.Record) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Record `%s`\n\n", rec.RecordID)
	fmt.Fprintf(&sb, "- **App**: %s\n", rec.AppID)
	fmt.Fprintf(&sb, "- **Time**: %s\n", rec.TS.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration**: %s\n", rec.Perf.Duration())
	fmt.Fprintf(&sb, "- **Calls**: %d\n", len(rec.Calls))
	if len(rec.Tags) > 0 {
		fmt.Fprintf(&sb, "- **Tags**: %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.MainError != "" {
		fmt.Fprintf(&sb, "- **Error**: %s\n", rec.MainError)
	}

	sb.WriteString("\n## Input\n\n")
	writeJSON(&sb, rec.MainInput)
	sb.WriteString("\n## Output\n\n")
	writeJSON(&sb, rec.MainOutput)

	if len(rec.Calls) == 0 {
		return sb.String()
	}

	sb.WriteString("\n## Calls\n\n")
	sb.WriteString("| # | Call | Args | Duration | Error |\n")
	sb.WriteString("|---|------|------|----------|-------|\n")
	for i, call := range rec.Calls {
		indent := strings.Repeat("  ", len(call.Callers()))
		fmt.Fprintf(&sb, "| %d | `%s%s` | %s | %s | %s |\n",
			i, indent, call.Top().String(), strings.Join(record.SortedKeys(call.Args), ", "),
			call.Perf.Duration(), escapeCell(call.Error))
	}

	sb.WriteString("\n## Tree\n\n```mermaid\n")
	sb.WriteString(graph.GenerateMermaid(rec))
	sb.WriteString("```\n")

	return sb.String()
}

func writeJSON(sb *strings.Builder, v any) {
	if v == nil {
		sb.WriteString("_none_\n")
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(sb, "_unrenderable: %v_\n", err)
		return
	}
	sb.WriteString("```json\n")
	sb.Write(data)
	sb.WriteString("\n```\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
