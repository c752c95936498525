package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/chainlens/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of the call tree of rec.
// It applies semantic styling:
// - Root call: ((Circle))
// - Leaf call: [[Subroutine]]
// - Default: [Rectangle]
// Failed calls get the "failed" class.
func GenerateMermaid(rec *domain.Record) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	parents := Parents(rec.Calls)
	leaf := make([]bool, len(rec.Calls))
	for i := range leaf {
		leaf[i] = true
	}
	for _, p := range parents {
		if p >= 0 {
			leaf[p] = false
		}
	}

	var failed []string
	for i, call := range rec.Calls {
		id := nodeID(i)
		top := call.Top()

		opener, closer := "[", "]"
		switch {
		case parents[i] < 0:
			opener, closer = "((", "))"
		case leaf[i]:
			opener, closer = "[[", "]]"
		}

		// Escape double quotes for Mermaid labels
		label := strings.ReplaceAll(top.String(), "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", id, opener, label, call.Perf.Duration(), closer))
		if call.Failed() {
			failed = append(failed, id)
		}
	}

	for i, p := range parents {
		if p >= 0 {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", nodeID(p), nodeID(i)))
		}
	}

	if len(failed) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		for _, id := range failed {
			sb.WriteString(fmt.Sprintf("    class %s failed;\n", id))
		}
	}

	return sb.String()
}

// Parents returns, for each call, the index of the call it was made from,
// or -1 for calls made directly by the root. Calls are in completion order,
// so a call's parent is the first later call whose stack is its callers.
func Parents(calls []domain.CallRecord) []int {
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = stackKey(c.Stack)
	}

	parents := make([]int, len(calls))
	for i, c := range calls {
		parents[i] = -1
		callers := c.Callers()
		if len(callers) == 0 {
			continue
		}
		want := stackKey(callers)
		for j := i + 1; j < len(calls); j++ {
			if keys[j] == want {
				parents[i] = j
				break
			}
		}
	}
	return parents
}

func stackKey(stack []domain.Frame) string {
	parts := make([]string, len(stack))
	for i, f := range stack {
		parts[i] = f.Path.String() + "::" + f.Method.String()
	}
	return strings.Join(parts, " > ")
}

func nodeID(i int) string {
	return fmt.Sprintf("c%d", i)
}
