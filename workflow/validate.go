package workflow

// Validate runs preflight checks against wf using reg's executors (§4.13).
// It never mutates wf. Errors (IssueError) should abort a run before any
// dispatch; warnings (IssueWarning) are surfaced but do not block execution.
func Validate(wf *Workflow, reg *Registry) []ValidationIssue {
	var issues []ValidationIssue
	idx := NewGraphIndex(wf)

	issues = append(issues, validateStartNodes(wf)...)

	nodeIDs := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeIDs[n.ID] = true
	}
	issues = append(issues, validateDanglingEdges(wf, nodeIDs)...)

	if start, ok := idx.StartNode(); ok {
		issues = append(issues, validateReachability(wf, idx, start.ID)...)
	}

	issues = append(issues, validateHandles(wf, idx, reg)...)

	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		exec, _ := reg.Lookup(n.Type)
		issues = append(issues, exec.Validate(n, idx)...)
	}

	return issues
}

func validateStartNodes(wf *Workflow) []ValidationIssue {
	var starts []string
	for _, n := range wf.Nodes {
		if n.Type == NodeStart {
			starts = append(starts, n.ID)
		}
	}
	switch len(starts) {
	case 0:
		return []ValidationIssue{{Code: CodeNoStartNode, Type: IssueError, Message: "workflow has no start node"}}
	case 1:
		return nil
	default:
		issues := make([]ValidationIssue, 0, len(starts))
		for _, id := range starts {
			issues = append(issues, ValidationIssue{Code: CodeMultipleStartNodes, Type: IssueError, NodeID: id, Message: "multiple start nodes declared"})
		}
		return issues
	}
}

func validateDanglingEdges(wf *Workflow, nodeIDs map[string]bool) []ValidationIssue {
	var issues []ValidationIssue
	for _, e := range wf.Edges {
		if !nodeIDs[e.Source] {
			issues = append(issues, ValidationIssue{Code: CodeDanglingEdge, Type: IssueError, EdgeID: e.ID, Message: "edge source node not found: " + e.Source})
		}
		if !nodeIDs[e.Target] {
			issues = append(issues, ValidationIssue{Code: CodeDanglingEdge, Type: IssueError, EdgeID: e.ID, Message: "edge target node not found: " + e.Target})
		}
	}
	return issues
}

func validateReachability(wf *Workflow, idx *GraphIndex, startID string) []ValidationIssue {
	reachable := idx.reachableFrom(startID)
	var issues []ValidationIssue
	for _, n := range wf.Nodes {
		if n.Type == NodeStart {
			continue
		}
		if !reachable[n.ID] {
			issues = append(issues, ValidationIssue{Code: CodeDisconnectedNode, Type: IssueError, NodeID: n.ID, Message: "node is not reachable from start"})
		}
	}
	return issues
}

// validateHandles checks that every edge's sourceHandle is either the
// literal "error", empty (default handle), or produced by the source node's
// DynamicOutputs; it also flags duplicate (source, sourceHandle) pairs on
// router nodes as a warning (§4.13).
func validateHandles(wf *Workflow, idx *GraphIndex, reg *Registry) []ValidationIssue {
	var issues []ValidationIssue
	seen := make(map[string]bool)

	for _, e := range wf.Edges {
		srcNode, ok := idx.GetNode(e.Source)
		if !ok {
			continue // already reported as DANGLING_EDGE
		}
		if e.SourceHandle != DefaultHandle && e.SourceHandle != ErrorHandle {
			exec, _ := reg.Lookup(srcNode.Type)
			known := false
			for _, out := range exec.DynamicOutputs(srcNode) {
				if out.ID == e.SourceHandle {
					known = true
					break
				}
			}
			if !known {
				issues = append(issues, ValidationIssue{Code: CodeUnknownHandle, Type: IssueError, EdgeID: e.ID, NodeID: e.Source, Message: "unknown source handle: " + e.SourceHandle})
			}
		}

		if srcNode.Type == NodeRouter {
			key := e.Source + "\x00" + e.SourceHandle
			if seen[key] {
				issues = append(issues, ValidationIssue{Code: CodeDuplicateSourceHandle, Type: IssueWarning, EdgeID: e.ID, NodeID: e.Source, Message: "duplicate (source, sourceHandle) on router node"})
			}
			seen[key] = true
		}
	}
	return issues
}

// HasErrors reports whether issues contains at least one blocking error.
func HasErrors(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Type == IssueError {
			return true
		}
	}
	return false
}
