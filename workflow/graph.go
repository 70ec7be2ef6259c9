package workflow

import "fmt"

// validate checks the structural invariants from the data model: every edge
// endpoint exists, no self-edges, no cycles, every worker_name resolves in
// the registry. Returns the topological order (serial, left-to-right by
// insertion order: ties broken by the node's position in wf.Nodes) on
// success.
func validate(wf Workflow, workerExists func(name string) bool) ([]string, error) {
	if len(wf.Nodes) == 0 {
		return nil, invalidWorkflow("workflow has no nodes")
	}

	index := make(map[string]int, len(wf.Nodes))
	for i, n := range wf.Nodes {
		if n.ID == "" {
			return nil, invalidWorkflow("node has empty id")
		}
		if _, dup := index[n.ID]; dup {
			return nil, invalidWorkflow(fmt.Sprintf("duplicate node id %q", n.ID))
		}
		index[n.ID] = i
		if n.WorkerName != "" && !workerExists(n.WorkerName) {
			return nil, invalidWorkflow(fmt.Sprintf("node %q references unknown worker %q", n.ID, n.WorkerName))
		}
	}

	adjacency := make(map[string][]string, len(wf.Nodes))
	indegree := make(map[string]int, len(wf.Nodes))
	for _, e := range wf.Edges {
		if e.Source == e.Target {
			return nil, invalidWorkflow(fmt.Sprintf("self-edge on node %q", e.Source))
		}
		if _, ok := index[e.Source]; !ok {
			return nil, invalidWorkflow(fmt.Sprintf("edge references unknown source node %q", e.Source))
		}
		if _, ok := index[e.Target]; !ok {
			return nil, invalidWorkflow(fmt.Sprintf("edge references unknown target node %q", e.Target))
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		indegree[e.Target]++
	}

	order, err := topologicalOrder(wf, index, adjacency, indegree)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// topologicalOrder computes a deterministic Kahn's-algorithm ordering: the
// ready set is always scanned in node-insertion order, so ties resolve
// left-to-right exactly as the reference policy requires.
func topologicalOrder(wf Workflow, index map[string]int, adjacency map[string][]string, indegree map[string]int) ([]string, error) {
	remaining := make(map[string]int, len(indegree))
	for id := range indegree {
		remaining[id] = indegree[id]
	}

	visited := make(map[string]bool, len(wf.Nodes))
	order := make([]string, 0, len(wf.Nodes))

	for len(order) < len(wf.Nodes) {
		progressed := false
		for _, n := range wf.Nodes {
			if visited[n.ID] {
				continue
			}
			if remaining[n.ID] > 0 {
				continue
			}
			visited[n.ID] = true
			order = append(order, n.ID)
			progressed = true
			for _, next := range adjacency[n.ID] {
				remaining[next]--
			}
		}
		if !progressed {
			return nil, invalidWorkflow("workflow graph has a cycle")
		}
	}
	return order, nil
}
