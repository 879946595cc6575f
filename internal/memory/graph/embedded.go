package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// EmbeddedStore is an in-memory GraphStore backed by adjacency maps. It is
// the default backend for single-process deployments and for tests.
type EmbeddedStore struct {
	mu    sync.RWMutex
	nodes map[types.ID]*Node
	// edges is an adjacency map; every edge appears under both endpoints.
	edges map[types.ID]map[types.ID]*Edge
	// byConv indexes node ids per conversation for scoped operations.
	byConv map[types.ID]map[types.ID]struct{}
}

// NewEmbeddedStore creates an empty in-memory graph store.
func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{
		nodes:  make(map[types.ID]*Node),
		edges:  make(map[types.ID]map[types.ID]*Edge),
		byConv: make(map[types.ID]map[types.ID]struct{}),
	}
}

// CreateNode stores a node, replacing any existing node with the same id.
func (s *EmbeddedStore) CreateNode(ctx context.Context, node Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.nodes[node.MemoryID]; ok {
		// Upsert keeps the usage counter from the previous write.
		node.UsageCount = prev.UsageCount
		if prev.ConversationID != node.ConversationID {
			delete(s.byConv[prev.ConversationID], node.MemoryID)
		}
	}
	s.nodes[node.MemoryID] = &node
	if s.byConv[node.ConversationID] == nil {
		s.byConv[node.ConversationID] = make(map[types.ID]struct{})
	}
	s.byConv[node.ConversationID][node.MemoryID] = struct{}{}
	return nil
}

// CreateEdge connects two existing nodes, checking the source first.
func (s *EmbeddedStore) CreateEdge(ctx context.Context, edge Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.SourceID]; !ok {
		return types.NewError(ErrCodeGraphNodeNotFound,
			"edge source node not found: "+edge.SourceID.String())
	}
	if _, ok := s.nodes[edge.TargetID]; !ok {
		return types.NewError(ErrCodeGraphNodeNotFound,
			"edge target node not found: "+edge.TargetID.String())
	}

	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	if s.edges[edge.SourceID] == nil {
		s.edges[edge.SourceID] = make(map[types.ID]*Edge)
	}
	if s.edges[edge.TargetID] == nil {
		s.edges[edge.TargetID] = make(map[types.ID]*Edge)
	}
	s.edges[edge.SourceID][edge.TargetID] = &edge
	s.edges[edge.TargetID][edge.SourceID] = &edge
	return nil
}

// RelatedTo performs a breadth-first traversal from memoryID.
func (s *EmbeddedStore) RelatedTo(ctx context.Context, memoryID types.ID, opts TraversalOptions) ([]Related, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[memoryID]; !ok {
		return nil, types.NewError(ErrCodeGraphNodeNotFound,
			"traversal origin not found: "+memoryID.String())
	}

	scoped := !opts.ConversationID.IsZero()

	type visit struct {
		depth  int
		weight float64
	}
	visited := map[types.ID]*visit{memoryID: {depth: 0, weight: 1}}
	frontier := []types.ID{memoryID}

	for depth := 1; depth <= opts.Depth && len(frontier) > 0; depth++ {
		var next []types.ID
		for _, id := range frontier {
			from := s.nodes[id]
			fromInside := !scoped || from.ConversationID == opts.ConversationID
			for neighborID, edge := range s.edges[id] {
				if edge.Weight < opts.MinWeight {
					continue
				}
				neighbor, ok := s.nodes[neighborID]
				if !ok {
					continue
				}
				if scoped {
					inside := neighbor.ConversationID == opts.ConversationID
					// Never follow an edge with both endpoints outside
					// the conversation.
					if !fromInside && !inside {
						continue
					}
					// Leaving the conversation requires an explicitly
					// allowed cross edge above the threshold.
					if !inside {
						if !opts.IncludeCross || !edge.CrossConversation || edge.Weight < opts.CrossThreshold {
							continue
						}
					}
				}
				weight := visited[id].weight * edge.Weight
				if prev, seen := visited[neighborID]; seen {
					if prev.depth == depth && weight > prev.weight {
						prev.weight = weight
					}
					continue
				}
				visited[neighborID] = &visit{depth: depth, weight: weight}
				next = append(next, neighborID)
			}
		}
		frontier = next
	}

	results := make([]Related, 0, len(visited)-1)
	for id, v := range visited {
		if id == memoryID {
			continue
		}
		results = append(results, Related{
			Node:       *s.nodes[id],
			PathLen:    v.depth,
			PathWeight: v.weight,
		})
	}
	sortRelated(results)
	return results, nil
}

// sortRelated orders by path weight descending, ties broken by fewer hops,
// then by newer node timestamp.
func sortRelated(results []Related) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PathWeight != results[j].PathWeight {
			return results[i].PathWeight > results[j].PathWeight
		}
		if results[i].PathLen != results[j].PathLen {
			return results[i].PathLen < results[j].PathLen
		}
		return results[i].Node.Timestamp.After(results[j].Node.Timestamp)
	})
}

// Node retrieves a single node by memory id.
func (s *EmbeddedStore) Node(ctx context.Context, memoryID types.ID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[memoryID]
	if !ok {
		return nil, types.NewError(ErrCodeGraphNodeNotFound,
			"node not found: "+memoryID.String())
	}
	copied := *node
	return &copied, nil
}

// Recent returns the newest nodes, optionally scoped to one conversation.
func (s *EmbeddedStore) Recent(ctx context.Context, conversationID types.ID, limit int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := s.collect(conversationID, func(*Node) bool { return true })
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Timestamp.After(nodes[j].Timestamp)
	})
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

// SearchByKeyword returns nodes matching the keyword, newest first.
func (s *EmbeddedStore) SearchByKeyword(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]Node, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil, types.NewError(ErrCodeGraphInvalidQuery, "search keyword cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := s.collect(conversationID, func(n *Node) bool {
		return strings.Contains(strings.ToLower(n.UserPreview), needle) ||
			strings.Contains(strings.ToLower(n.AgentPreview), needle) ||
			strings.Contains(strings.ToLower(n.Topic), needle)
	})
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Timestamp.After(nodes[j].Timestamp)
	})
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

// collect copies nodes matching the predicate, optionally conversation-scoped.
// Callers must hold at least the read lock.
func (s *EmbeddedStore) collect(conversationID types.ID, match func(*Node) bool) []Node {
	var nodes []Node
	if !conversationID.IsZero() {
		for id := range s.byConv[conversationID] {
			if node := s.nodes[id]; match(node) {
				nodes = append(nodes, *node)
			}
		}
		return nodes
	}
	for _, node := range s.nodes {
		if match(node) {
			nodes = append(nodes, *node)
		}
	}
	return nodes
}

// TouchUsage increments the usage counter on the given nodes.
func (s *EmbeddedStore) TouchUsage(ctx context.Context, memoryIDs []types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range memoryIDs {
		if node, ok := s.nodes[id]; ok {
			node.UsageCount++
		}
	}
	return nil
}

// ExpiredCandidates returns decay candidates: nodes older than cutoff with a
// usage count below the floor and no incident edge at or above minEdgeWeight.
func (s *EmbeddedStore) ExpiredCandidates(ctx context.Context, cutoff time.Time, minEdgeWeight float64, usageFloor int) ([]types.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []types.ID
	for id, node := range s.nodes {
		if !node.Timestamp.Before(cutoff) {
			continue
		}
		if node.UsageCount >= usageFloor {
			continue
		}
		anchored := false
		for _, edge := range s.edges[id] {
			if edge.Weight >= minEdgeWeight {
				anchored = true
				break
			}
		}
		if !anchored {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// DeleteNode removes a node and every edge touching it. Deleting a missing
// node is a no-op so decay and cascade passes are idempotent.
func (s *EmbeddedStore) DeleteNode(ctx context.Context, memoryID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteNodeLocked(memoryID)
	return nil
}

func (s *EmbeddedStore) deleteNodeLocked(memoryID types.ID) {
	node, ok := s.nodes[memoryID]
	if !ok {
		return
	}
	for neighborID := range s.edges[memoryID] {
		delete(s.edges[neighborID], memoryID)
	}
	delete(s.edges, memoryID)
	delete(s.byConv[node.ConversationID], memoryID)
	delete(s.nodes, memoryID)
}

// DeleteConversation removes every node in the conversation.
func (s *EmbeddedStore) DeleteConversation(ctx context.Context, conversationID types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]types.ID, 0, len(s.byConv[conversationID]))
	for id := range s.byConv[conversationID] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		s.deleteNodeLocked(id)
	}
	delete(s.byConv, conversationID)
	return len(ids), nil
}

// Stats returns graph-wide node and edge counts.
func (s *EmbeddedStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edgeHalves := 0
	for _, neighbors := range s.edges {
		edgeHalves += len(neighbors)
	}
	return Stats{
		NodeCount: len(s.nodes),
		EdgeCount: edgeHalves / 2,
	}, nil
}

// Health reports the store as healthy; an in-memory store has no failure
// modes beyond process death.
func (s *EmbeddedStore) Health(ctx context.Context) types.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Healthy("embedded graph store operational")
}

// Close clears the in-memory graph.
func (s *EmbeddedStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[types.ID]*Node)
	s.edges = make(map[types.ID]map[types.ID]*Edge)
	s.byConv = make(map[types.ID]map[types.ID]struct{})
	return nil
}
