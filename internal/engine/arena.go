package engine

import "github.com/weft-dev/weft/internal/core"

// arena is the flattened task forest. The scheduler works on ids only.
type arena struct {
	tasks    map[core.TaskID]*core.Task
	parent   map[core.TaskID]core.TaskID
	children map[core.TaskID][]core.TaskID
	roots    []core.TaskID
	// order is the depth-first order, parents before children.
	order []core.TaskID
}

func newArena(w *core.Workflow) *arena {
	a := &arena{
		tasks:    make(map[core.TaskID]*core.Task),
		parent:   make(map[core.TaskID]core.TaskID),
		children: make(map[core.TaskID][]core.TaskID),
	}
	w.Walk(func(task, parent *core.Task) {
		a.tasks[task.ID] = task
		a.order = append(a.order, task.ID)
		if parent == nil {
			a.roots = append(a.roots, task.ID)
			return
		}
		a.parent[task.ID] = parent.ID
		a.children[parent.ID] = append(a.children[parent.ID], task.ID)
	})
	return a
}

func (a *arena) task(id core.TaskID) *core.Task {
	return a.tasks[id]
}

func (a *arena) len() int {
	return len(a.order)
}

// runState tracks scheduling decisions for one forward pass.
type runState struct {
	completed map[core.TaskID]bool
	waiting   map[core.TaskID]bool
	failed    map[core.TaskID]bool
	errors    []string
}

func newRunState() *runState {
	return &runState{
		completed: make(map[core.TaskID]bool),
		waiting:   make(map[core.TaskID]bool),
		failed:    make(map[core.TaskID]bool),
	}
}

// ready returns the tasks that can be dispatched now, in depth-first order.
// A task is ready when it has not completed, is not waiting, has not failed,
// and is a root or has a completed parent. The walk descends only through
// completed tasks, so a waiting or failed task blocks exactly its subtree.
func (a *arena) ready(s *runState) []core.TaskID {
	var out []core.TaskID
	var visit func(id core.TaskID)
	visit = func(id core.TaskID) {
		switch {
		case s.completed[id]:
			for _, child := range a.children[id] {
				visit(child)
			}
		case s.waiting[id], s.failed[id]:
		default:
			out = append(out, id)
		}
	}
	for _, root := range a.roots {
		visit(root)
	}
	return out
}

// ancestors returns the path from id's parent up to its root.
func (a *arena) ancestors(id core.TaskID) []core.TaskID {
	var out []core.TaskID
	for {
		p, ok := a.parent[id]
		if !ok {
			return out
		}
		out = append(out, p)
		id = p
	}
}
