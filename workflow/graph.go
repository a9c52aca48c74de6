package workflow

// GraphIndex builds adjacency/reverse-adjacency maps over a Workflow once
// per run and exposes O(1) lookups to the traversal driver (§4.1). Edge
// order is preserved exactly as authored; when multiple edges share
// (source, sourceHandle) all are honored in declared order.
type GraphIndex struct {
	wf          *Workflow
	nodesByID   map[string]*Node
	outByNode   map[string][]*Edge   // source -> edges, declared order
	outByHandle map[string][]*Edge   // source+"\x00"+handle -> edges, declared order
	startNode   *Node
}

// NewGraphIndex constructs a GraphIndex over wf in O(V+E).
func NewGraphIndex(wf *Workflow) *GraphIndex {
	gi := &GraphIndex{
		wf:          wf,
		nodesByID:   make(map[string]*Node, len(wf.Nodes)),
		outByNode:   make(map[string][]*Edge),
		outByHandle: make(map[string][]*Edge),
	}
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		gi.nodesByID[n.ID] = n
		if n.Type == NodeStart && gi.startNode == nil {
			gi.startNode = n
		}
	}
	for i := range wf.Edges {
		e := &wf.Edges[i]
		gi.outByNode[e.Source] = append(gi.outByNode[e.Source], e)
		key := handleKey(e.Source, e.SourceHandle)
		gi.outByHandle[key] = append(gi.outByHandle[key], e)
	}
	return gi
}

func handleKey(nodeID, handle string) string {
	return nodeID + "\x00" + handle
}

// Meta returns the workflow's top-level metadata.
func (gi *GraphIndex) Meta() WorkflowMeta {
	return gi.wf.Meta
}

// StartNode returns the graph's unique start node, if present.
func (gi *GraphIndex) StartNode() (*Node, bool) {
	if gi.startNode == nil {
		return nil, false
	}
	return gi.startNode, true
}

// GetNode looks up a node by id.
func (gi *GraphIndex) GetNode(id string) (*Node, bool) {
	n, ok := gi.nodesByID[id]
	return n, ok
}

// Outgoing returns all outgoing edges from nodeID in declared order.
func (gi *GraphIndex) Outgoing(nodeID string) []*Edge {
	return gi.outByNode[nodeID]
}

// OutgoingOnHandle returns the outgoing edges from nodeID whose
// SourceHandle equals handle, in declared order.
func (gi *GraphIndex) OutgoingOnHandle(nodeID, handle string) []*Edge {
	return gi.outByHandle[handleKey(nodeID, handle)]
}

// HasOutgoing reports whether nodeID has at least one outgoing edge on handle.
func (gi *GraphIndex) HasOutgoing(nodeID, handle string) bool {
	return len(gi.outByHandle[handleKey(nodeID, handle)]) > 0
}

// AllNodes returns the full node list in declared order.
func (gi *GraphIndex) AllNodes() []Node {
	return gi.wf.Nodes
}

// AllEdges returns the full edge list in declared order.
func (gi *GraphIndex) AllEdges() []Edge {
	return gi.wf.Edges
}

// reachableFrom computes the set of node ids reachable from rootIDs
// (the roots themselves included), used by preflight validation
// (DISCONNECTED_NODE) and by the driver's while-loop body traversal (§4.8).
func (gi *GraphIndex) reachableFrom(rootIDs ...string) map[string]bool {
	seen := make(map[string]bool, len(gi.nodesByID))
	queue := append([]string(nil), rootIDs...)
	for _, id := range rootIDs {
		seen[id] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range gi.outByNode[cur] {
			if !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return seen
}
