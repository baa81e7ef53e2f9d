package server

// Wire parameter and result shapes for each method in the methods table.
// Fields are plain JSON-tagged structs decoded from / encoded into
// protocol.Request.Params and protocol.Response.Result — dynamic document
// payloads stay as `any` per SPEC_FULL.md's "path extraction over decoded
// JSON" design note.

type createParams struct {
	Data          any     `json:"data"`
	ID            string  `json:"id,omitempty"`
	TransactionID *uint64 `json:"transaction_id,omitempty"`
}

type createResult struct {
	ID        string `json:"id"`
	Version   uint64 `json:"version"`
	CreatedAt string `json:"created_at"`
	Document  any    `json:"document,omitempty"`
}

type readParams struct {
	ID            *string `json:"id,omitempty"`
	IDs           []string `json:"ids,omitempty"`
	Offset        *int    `json:"offset,omitempty"`
	Limit         *int    `json:"limit,omitempty"`
	TransactionID *uint64 `json:"transaction_id,omitempty"`
}

type readResult struct {
	Document   any   `json:"document,omitempty"`
	Documents  []any `json:"documents,omitempty"`
	TotalCount *int  `json:"total_count,omitempty"`
}

type updateParams struct {
	ID              string  `json:"id"`
	Data            any     `json:"data"`
	ExpectedVersion *uint64 `json:"expected_version,omitempty"`
	TransactionID   *uint64 `json:"transaction_id,omitempty"`
}

type updateResult struct {
	ID        string `json:"id"`
	Version   uint64 `json:"version"`
	UpdatedAt string `json:"updated_at"`
	Document  any    `json:"document,omitempty"`
}

type deleteParams struct {
	ID              *string  `json:"id,omitempty"`
	IDs             []string `json:"ids,omitempty"`
	ExpectedVersion *uint64  `json:"expected_version,omitempty"`
	TransactionID   *uint64  `json:"transaction_id,omitempty"`
}

type deleteResult struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids,omitempty"`
}

type whereClauseParams struct {
	Path     string `json:"path"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type sortClauseParams struct {
	Path       string `json:"path"`
	Descending bool   `json:"descending"`
}

type projectionParams struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

type queryParams struct {
	WhereClauses  []whereClauseParams `json:"where_clauses,omitempty"`
	SortClauses   []sortClauseParams  `json:"sort_clauses,omitempty"`
	Projection    *projectionParams   `json:"projection,omitempty"`
	Offset        *int                `json:"offset,omitempty"`
	Limit         *int                `json:"limit,omitempty"`
	TransactionID *uint64             `json:"transaction_id,omitempty"`
}

type queryResult struct {
	Documents       []any   `json:"documents"`
	TotalCount      int     `json:"total_count"`
	ExecutionTimeMs float64 `json:"execution_time_ms,omitempty"`
	IndexUsed       string  `json:"index_used,omitempty"`
}

type indexParams struct {
	Name      string   `json:"name"`
	Operation string   `json:"operation"`
	Fields    []string `json:"fields,omitempty"`
	IndexType string   `json:"index_type,omitempty"`
	Unique    bool      `json:"unique,omitempty"`
}

type indexStatsWire struct {
	Name                 string `json:"name"`
	TotalEntries         int    `json:"total_entries"`
	UniqueValues         int    `json:"unique_values"`
	EstimatedMemoryUsage int64  `json:"estimated_memory_usage"`
}

type indexConfigWire struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Kind   string   `json:"kind"`
	Unique bool     `json:"unique"`
}

type indexResult struct {
	Name    string            `json:"name"`
	Message string            `json:"message"`
	Stats   *indexStatsWire   `json:"stats,omitempty"`
	Indexes []indexConfigWire `json:"indexes,omitempty"`
}

type transactionParams struct {
	Operation       string  `json:"operation"`
	TransactionID   *uint64 `json:"transaction_id,omitempty"`
	IsolationLevel  string  `json:"isolation_level,omitempty"`
	TimeoutSeconds  *int    `json:"timeout_seconds,omitempty"`
}

type transactionResult struct {
	TransactionID uint64 `json:"transaction_id"`
	Message       string `json:"message"`
	Status        string `json:"status,omitempty"`
}

type statsResult struct {
	DocumentCount      int    `json:"document_count"`
	TotalSizeBytes     int64  `json:"total_size_bytes"`
	IndexCount         int    `json:"index_count"`
	ActiveConnections  int    `json:"active_connections"`
	TotalConnections   uint64 `json:"total_connections"`
	PeakConnections    uint64 `json:"peak_connections"`
	ActiveTransactions int    `json:"active_transactions"`
	CurrentLSN         uint64 `json:"current_lsn"`
	ServerUptimeSeconds float64 `json:"server_uptime_seconds"`
}

type pingResult struct {
	Message             string  `json:"message"`
	Timestamp            string  `json:"timestamp"`
	ServerUptimeSeconds float64 `json:"server_uptime_seconds"`
}
