package parser

import (
	"fmt"

	"github.com/gammazero/toposort"

	"github.com/weft-dev/weft/internal/core"
)

// ExecutionOrder lists every task id so that each task follows its parent,
// with childless root tasks first. It is a listing aid for validate and the
// workflow API; it is not the order the engine dispatches in, which runs
// ready tasks concurrently in document order round by round.
func ExecutionOrder(w *core.Workflow) ([]core.TaskID, error) {
	var (
		all   []core.TaskID
		edges []toposort.Edge
	)
	w.Walk(func(task, parent *core.Task) {
		all = append(all, task.ID)
		if parent != nil {
			edges = append(edges, toposort.Edge{string(parent.ID), string(task.ID)})
		}
	})

	if len(edges) == 0 {
		return all, nil
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("ordering tasks: %w", err)
	}

	order := make([]core.TaskID, 0, len(all))
	for _, id := range all {
		// Isolated roots are not part of any edge.
		if isolated(w, id) {
			order = append(order, id)
		}
	}
	for _, node := range sorted {
		order = append(order, core.TaskID(node.(string)))
	}
	return order, nil
}

func isolated(w *core.Workflow, id core.TaskID) bool {
	for _, root := range w.Tasks {
		if root.ID == id {
			return len(root.Children) == 0
		}
	}
	return false
}
