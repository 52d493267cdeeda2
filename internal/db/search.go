package db

// KNNQuery is the input for tenant-scoped vector similarity search.
// TenantTag is mandatory: the tenant filter is part of query construction,
// never left to caller discipline.
type KNNQuery struct {
	IndexName    string
	TenantTag    string
	EntityTypes  []string // optional TAG filter on entity type
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
