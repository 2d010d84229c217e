package engine

import (
	"regexp"
	"strings"

	"github.com/weft-dev/weft/internal/core"
)

// outputRef matches {{tasks.<id>.output}}.
var outputRef = regexp.MustCompile(`\{\{\s*tasks\.([^{}\s]+)\.output\s*\}\}`)

// expand substitutes references to the output of id's completed ancestors.
// References to any other task, or to an ancestor that has not completed,
// are left as written.
func expand(ec *ExecutionContext, id core.TaskID, s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	lineage := make(map[core.TaskID]bool)
	if ec.ancestors != nil {
		for _, p := range ec.ancestors(id) {
			lineage[p] = true
		}
	}
	return outputRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := outputRef.FindStringSubmatch(ref)
		target := core.TaskID(m[1])
		if !lineage[target] {
			return ref
		}
		output, status, ok := ec.Output(target)
		if !ok || status != core.TaskStatusComplete {
			return ref
		}
		return strings.TrimSpace(output)
	})
}

func expandAll(ec *ExecutionContext, id core.TaskID, in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = expand(ec, id, s)
	}
	return out
}
