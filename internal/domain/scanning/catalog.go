package scanning

import "time"

// ProjectDisplayData summarizes a project known to the server.
type ProjectDisplayData struct {
	ProjectID    int64
	ProjectName  string
	Group        string
	Preset       string
	Owner        string
	LastScanDate time.Time
	TotalScans   int64
}

// Preset is a named query set a project may be scanned with.
type Preset struct {
	ID   int64
	Name string
}

// ConfigurationSet is what the server calls a source encoding configuration.
type ConfigurationSet struct {
	ID   int64
	Name string
}
