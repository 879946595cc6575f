package graph

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/uspq/neko-ai/internal/types"
)

// Neo4jConfig holds connection settings for a Neo4j-backed graph store.
type Neo4jConfig struct {
	// URI is the connection URI, e.g. "bolt://host:port" for unencrypted
	// connections or "bolt+s://host:port" for TLS.
	URI string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// Database name to connect to. Empty string uses the default database.
	Database string

	// MaxConnectionPoolSize limits the number of connections in the pool.
	// Zero or negative values use the driver default.
	MaxConnectionPoolSize int

	// ConnectionTimeout is the maximum time to wait for a connection.
	ConnectionTimeout time.Duration

	// MaxTransactionRetryTime is the maximum time to retry failed transactions.
	MaxTransactionRetryTime time.Duration
}

// DefaultNeo4jConfig returns a Neo4jConfig with sensible defaults.
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		Password:                "password",
		Database:                "",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Neo4jConfig) Validate() error {
	if c.URI == "" {
		return types.NewError(ErrCodeGraphInvalidConf, "URI cannot be empty")
	}
	if c.Username == "" {
		return types.NewError(ErrCodeGraphInvalidConf, "Username cannot be empty")
	}
	if c.Password == "" {
		return types.NewError(ErrCodeGraphInvalidConf, "Password cannot be empty")
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(ErrCodeGraphInvalidConf, "ConnectionTimeout must be positive")
	}
	if c.MaxTransactionRetryTime <= 0 {
		return types.NewError(ErrCodeGraphInvalidConf, "MaxTransactionRetryTime must be positive")
	}
	return nil
}

// Neo4jStore implements GraphStore backed by a Neo4j database. Memory nodes
// carry the :Memory label; similarity edges are :SIMILAR_TO relationships.
type Neo4jStore struct {
	config Neo4jConfig
	driver neo4j.DriverWithContext
}

// NewNeo4jStore creates a new Neo4j store with the given configuration.
// The store must be connected via Connect() before use.
func NewNeo4jStore(config Neo4jConfig) (*Neo4jStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Neo4jStore{config: config}, nil
}

// Connect establishes a connection to the Neo4j database and ensures the
// schema exists. Uses exponential backoff for connection retries.
func (s *Neo4jStore) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(s.config.Username, s.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = s.config.MaxConnectionPoolSize
		config.ConnectionAcquisitionTimeout = s.config.ConnectionTimeout
		config.MaxTransactionRetryTime = s.config.MaxTransactionRetryTime
	}

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(s.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				s.driver = driver
				return s.ensureSchema(ctx)
			}
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(ErrCodeGraphUnavailable,
				"connection attempt cancelled", ctx.Err())
		}

		// Backoff delay: baseDelay * 2^attempt, capped at the
		// connection timeout.
		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > s.config.ConnectionTimeout {
			delay = s.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(ErrCodeGraphUnavailable,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapRetryableError(ErrCodeGraphUnavailable,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// ensureSchema creates the uniqueness constraint and lookup indexes.
func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT memory_id IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE INDEX memory_conversation IF NOT EXISTS FOR (m:Memory) ON (m.conversation_id)",
		"CREATE INDEX memory_created IF NOT EXISTS FOR (m:Memory) ON (m.created_at)",
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	for _, stmt := range statements {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			_, err = result.Consume(ctx)
			return nil, err
		})
		if err != nil {
			return types.WrapError(ErrCodeGraphWriteFailed, "schema setup failed", err)
		}
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
	})
}

// CreateNode upserts a memory node. The usage counter survives retries.
func (s *Neo4jStore) CreateNode(ctx context.Context, node Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if s.driver == nil {
		return types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	cypher := `
		MERGE (m:Memory {id: $id})
		ON CREATE SET m.usage_count = 0
		SET m.conversation_id = $conversation_id,
		    m.topic = $topic,
		    m.user_preview = $user_preview,
		    m.agent_preview = $agent_preview,
		    m.created_at = $created_at
	`
	params := map[string]any{
		"id":              node.MemoryID.String(),
		"conversation_id": node.ConversationID.String(),
		"topic":           node.Topic,
		"user_preview":    node.UserPreview,
		"agent_preview":   node.AgentPreview,
		"created_at":      node.Timestamp.UTC().UnixMilli(),
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return types.WrapRetryableError(ErrCodeGraphWriteFailed,
			"failed to create node", err)
	}
	return nil
}

// CreateEdge connects two existing nodes. The source node's existence is
// verified before the target's.
func (s *Neo4jStore) CreateEdge(ctx context.Context, edge Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	if s.driver == nil {
		return types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	checkCypher := `
		OPTIONAL MATCH (s:Memory {id: $source})
		OPTIONAL MATCH (t:Memory {id: $target})
		RETURN s IS NOT NULL AS source_ok, t IS NOT NULL AS target_ok
	`
	mergeCypher := `
		MATCH (s:Memory {id: $source}), (t:Memory {id: $target})
		MERGE (s)-[r:SIMILAR_TO]->(t)
		SET r.weight = $weight,
		    r.cross_conversation = $cross_conversation,
		    r.created_at = $created_at
	`
	createdAt := edge.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	params := map[string]any{
		"source":             edge.SourceID.String(),
		"target":             edge.TargetID.String(),
		"weight":             edge.Weight,
		"cross_conversation": edge.CrossConversation,
		"created_at":         createdAt.UTC().UnixMilli(),
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, checkCypher, params)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		if ok, _ := record.Get("source_ok"); ok != true {
			return nil, types.NewError(ErrCodeGraphNodeNotFound,
				"edge source node not found: "+edge.SourceID.String())
		}
		if ok, _ := record.Get("target_ok"); ok != true {
			return nil, types.NewError(ErrCodeGraphNodeNotFound,
				"edge target node not found: "+edge.TargetID.String())
		}

		result, err = tx.Run(ctx, mergeCypher, params)
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	if err != nil {
		if types.HasCode(err, ErrCodeGraphNodeNotFound) {
			return err
		}
		return types.WrapRetryableError(ErrCodeGraphWriteFailed,
			"failed to create edge", err)
	}
	return nil
}

// RelatedTo traverses from memoryID up to opts.Depth hops over SIMILAR_TO
// edges. Depth is interpolated into the pattern because Cypher cannot
// parameterize variable-length bounds.
func (s *Neo4jStore) RelatedTo(ctx context.Context, memoryID types.ID, opts TraversalOptions) ([]Related, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.driver == nil {
		return nil, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	conditions := []string{
		"related.id <> $id",
		"ALL(rel IN relationships(p) WHERE rel.weight >= $min_weight)",
	}
	params := map[string]any{
		"id":         memoryID.String(),
		"min_weight": opts.MinWeight,
	}

	if !opts.ConversationID.IsZero() {
		params["conversation_id"] = opts.ConversationID.String()
		// An edge with both endpoints outside the conversation is never
		// followed.
		conditions = append(conditions,
			"ALL(idx IN range(0, size(relationships(p))-1) WHERE nodes(p)[idx].conversation_id = $conversation_id OR nodes(p)[idx+1].conversation_id = $conversation_id)")
		if opts.IncludeCross {
			params["cross_threshold"] = opts.CrossThreshold
			// Stepping onto a node outside the conversation requires a
			// cross edge at or above the threshold.
			conditions = append(conditions,
				"ALL(idx IN range(0, size(relationships(p))-1) WHERE nodes(p)[idx+1].conversation_id = $conversation_id OR (relationships(p)[idx].cross_conversation AND relationships(p)[idx].weight >= $cross_threshold))")
		} else {
			conditions = append(conditions,
				"ALL(n IN nodes(p) WHERE n.conversation_id = $conversation_id)")
		}
	}

	cypher := fmt.Sprintf(`
		MATCH (origin:Memory {id: $id})
		CALL {
			WITH origin
			MATCH p = (origin)-[:SIMILAR_TO*1..%d]-(related:Memory)
			WHERE %s
			RETURN related,
			       min(length(p)) AS path_len,
			       max(reduce(w = 1.0, rel IN relationships(p) | w * rel.weight)) AS path_weight
		}
		RETURN related.id AS id,
		       related.conversation_id AS conversation_id,
		       related.topic AS topic,
		       related.user_preview AS user_preview,
		       related.agent_preview AS agent_preview,
		       related.created_at AS created_at,
		       related.usage_count AS usage_count,
		       path_len, path_weight
	`, opts.Depth, strings.Join(conditions, " AND "))

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := s.readRecords(ctx, session, cypher, params)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"traversal failed", err)
	}
	if len(records) == 0 {
		// Distinguish a missing origin from an origin with no neighbors.
		exists, err := s.nodeExists(ctx, session, memoryID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, types.NewError(ErrCodeGraphNodeNotFound,
				"traversal origin not found: "+memoryID.String())
		}
		return []Related{}, nil
	}

	results := make([]Related, 0, len(records))
	for _, record := range records {
		node := nodeFromRecord(record)
		pathLen, _ := record.Get("path_len")
		pathWeight, _ := record.Get("path_weight")
		results = append(results, Related{
			Node:       node,
			PathLen:    int(asInt64(pathLen)),
			PathWeight: asFloat64(pathWeight),
		})
	}
	sortRelated(results)
	return results, nil
}

// Node retrieves a single node by memory id.
func (s *Neo4jStore) Node(ctx context.Context, memoryID types.ID) (*Node, error) {
	if s.driver == nil {
		return nil, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	cypher := `
		MATCH (m:Memory {id: $id})
		RETURN m.id AS id, m.conversation_id AS conversation_id, m.topic AS topic,
		       m.user_preview AS user_preview, m.agent_preview AS agent_preview,
		       m.created_at AS created_at, m.usage_count AS usage_count
	`
	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := s.readRecords(ctx, session, cypher, map[string]any{"id": memoryID.String()})
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"node lookup failed", err)
	}
	if len(records) == 0 {
		return nil, types.NewError(ErrCodeGraphNodeNotFound,
			"node not found: "+memoryID.String())
	}
	node := nodeFromRecord(records[0])
	return &node, nil
}

// Recent returns the newest nodes, optionally scoped to one conversation.
func (s *Neo4jStore) Recent(ctx context.Context, conversationID types.ID, limit int) ([]Node, error) {
	if s.driver == nil {
		return nil, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	where := ""
	params := map[string]any{"limit": limit}
	if !conversationID.IsZero() {
		where = "WHERE m.conversation_id = $conversation_id"
		params["conversation_id"] = conversationID.String()
	}

	cypher := fmt.Sprintf(`
		MATCH (m:Memory) %s
		RETURN m.id AS id, m.conversation_id AS conversation_id, m.topic AS topic,
		       m.user_preview AS user_preview, m.agent_preview AS agent_preview,
		       m.created_at AS created_at, m.usage_count AS usage_count
		ORDER BY m.created_at DESC
		LIMIT $limit
	`, where)

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := s.readRecords(ctx, session, cypher, params)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"recent lookup failed", err)
	}
	return nodesFromRecords(records), nil
}

// SearchByKeyword returns nodes matching the keyword, newest first.
func (s *Neo4jStore) SearchByKeyword(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]Node, error) {
	needle := strings.TrimSpace(keyword)
	if needle == "" {
		return nil, types.NewError(ErrCodeGraphInvalidQuery, "search keyword cannot be empty")
	}
	if s.driver == nil {
		return nil, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	conditions := []string{
		"(toLower(m.user_preview) CONTAINS toLower($keyword) OR toLower(m.agent_preview) CONTAINS toLower($keyword) OR toLower(coalesce(m.topic, '')) CONTAINS toLower($keyword))",
	}
	params := map[string]any{"keyword": needle, "limit": limit}
	if !conversationID.IsZero() {
		conditions = append(conditions, "m.conversation_id = $conversation_id")
		params["conversation_id"] = conversationID.String()
	}

	cypher := fmt.Sprintf(`
		MATCH (m:Memory)
		WHERE %s
		RETURN m.id AS id, m.conversation_id AS conversation_id, m.topic AS topic,
		       m.user_preview AS user_preview, m.agent_preview AS agent_preview,
		       m.created_at AS created_at, m.usage_count AS usage_count
		ORDER BY m.created_at DESC
		LIMIT $limit
	`, strings.Join(conditions, " AND "))

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := s.readRecords(ctx, session, cypher, params)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"keyword search failed", err)
	}
	return nodesFromRecords(records), nil
}

// TouchUsage increments the usage counter on the given nodes.
func (s *Neo4jStore) TouchUsage(ctx context.Context, memoryIDs []types.ID) error {
	if len(memoryIDs) == 0 {
		return nil
	}
	if s.driver == nil {
		return types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	ids := make([]string, len(memoryIDs))
	for i, id := range memoryIDs {
		ids[i] = id.String()
	}
	cypher := `
		MATCH (m:Memory)
		WHERE m.id IN $ids
		SET m.usage_count = coalesce(m.usage_count, 0) + 1
	`
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return types.WrapRetryableError(ErrCodeGraphWriteFailed,
			"failed to touch usage", err)
	}
	return nil
}

// ExpiredCandidates returns decay candidates older than cutoff.
func (s *Neo4jStore) ExpiredCandidates(ctx context.Context, cutoff time.Time, minEdgeWeight float64, usageFloor int) ([]types.ID, error) {
	if s.driver == nil {
		return nil, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	cypher := `
		MATCH (m:Memory)
		WHERE m.created_at < $cutoff
		  AND coalesce(m.usage_count, 0) < $usage_floor
		  AND NOT EXISTS {
			MATCH (m)-[r:SIMILAR_TO]-()
			WHERE r.weight >= $min_edge_weight
		  }
		RETURN m.id AS id
	`
	params := map[string]any{
		"cutoff":          cutoff.UTC().UnixMilli(),
		"usage_floor":     usageFloor,
		"min_edge_weight": minEdgeWeight,
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := s.readRecords(ctx, session, cypher, params)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"expiry scan failed", err)
	}

	ids := make([]types.ID, 0, len(records))
	for _, record := range records {
		id, _ := record.Get("id")
		ids = append(ids, types.ID(asString(id)))
	}
	return ids, nil
}

// DeleteNode removes a node and all touching edges.
func (s *Neo4jStore) DeleteNode(ctx context.Context, memoryID types.ID) error {
	if s.driver == nil {
		return types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	cypher := `MATCH (m:Memory {id: $id}) DETACH DELETE m`
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": memoryID.String()})
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return types.WrapRetryableError(ErrCodeGraphDeleteFailed,
			"failed to delete node", err)
	}
	return nil
}

// DeleteConversation removes every node in the conversation.
func (s *Neo4jStore) DeleteConversation(ctx context.Context, conversationID types.ID) (int, error) {
	if s.driver == nil {
		return 0, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	cypher := `
		MATCH (m:Memory {conversation_id: $conversation_id})
		DETACH DELETE m
	`
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"conversation_id": conversationID.String(),
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesDeleted(), nil
	})
	if err != nil {
		return 0, types.WrapRetryableError(ErrCodeGraphDeleteFailed,
			"failed to delete conversation nodes", err)
	}
	return result.(int), nil
}

// Stats returns graph-wide node and edge counts.
func (s *Neo4jStore) Stats(ctx context.Context) (Stats, error) {
	if s.driver == nil {
		return Stats{}, types.NewError(ErrCodeGraphUnavailable, "driver not connected")
	}

	cypher := `
		MATCH (m:Memory)
		OPTIONAL MATCH ()-[r:SIMILAR_TO]->()
		RETURN count(DISTINCT m) AS nodes, count(DISTINCT r) AS edges
	`
	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := s.readRecords(ctx, session, cypher, nil)
	if err != nil {
		return Stats{}, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"stats query failed", err)
	}
	if len(records) == 0 {
		return Stats{}, nil
	}
	nodes, _ := records[0].Get("nodes")
	edges, _ := records[0].Get("edges")
	return Stats{
		NodeCount: int(asInt64(nodes)),
		EdgeCount: int(asInt64(edges)),
	}, nil
}

// Health returns the current health status of the Neo4j connection.
func (s *Neo4jStore) Health(ctx context.Context) types.HealthStatus {
	if s.driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}
	return types.Healthy("connected to Neo4j")
}

// Close releases all resources and closes the database connection.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	if err := s.driver.Close(ctx); err != nil {
		return types.WrapError(ErrCodeGraphUnavailable, "failed to close driver", err)
	}
	s.driver = nil
	return nil
}

func (s *Neo4jStore) nodeExists(ctx context.Context, session neo4j.SessionWithContext, memoryID types.ID) (bool, error) {
	cypher := `MATCH (m:Memory {id: $id}) RETURN count(m) AS total`
	records, err := s.readRecords(ctx, session, cypher, map[string]any{"id": memoryID.String()})
	if err != nil {
		return false, types.WrapRetryableError(ErrCodeGraphQueryFailed,
			"node existence check failed", err)
	}
	if len(records) == 0 {
		return false, nil
	}
	total, _ := records[0].Get("total")
	return asInt64(total) > 0, nil
}

func (s *Neo4jStore) readRecords(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any) ([]*db.Record, error) {
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*db.Record), nil
}

func nodesFromRecords(records []*db.Record) []Node {
	nodes := make([]Node, 0, len(records))
	for _, record := range records {
		nodes = append(nodes, nodeFromRecord(record))
	}
	return nodes
}

func nodeFromRecord(record *db.Record) Node {
	id, _ := record.Get("id")
	conversationID, _ := record.Get("conversation_id")
	topic, _ := record.Get("topic")
	userPreview, _ := record.Get("user_preview")
	agentPreview, _ := record.Get("agent_preview")
	createdAt, _ := record.Get("created_at")
	usageCount, _ := record.Get("usage_count")

	return Node{
		MemoryID:       types.ID(asString(id)),
		ConversationID: types.ID(asString(conversationID)),
		Topic:          asString(topic),
		UserPreview:    asString(userPreview),
		AgentPreview:   asString(agentPreview),
		Timestamp:      time.UnixMilli(asInt64(createdAt)).UTC(),
		UsageCount:     int(asInt64(usageCount)),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
