package core

// Page is one page of results from a telemetry fetch collaborator.
type Page struct {
	Results    []Record               `json:"results"`
	Count      int                    `json:"count"`
	NextCursor string                 `json:"next_cursor,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
