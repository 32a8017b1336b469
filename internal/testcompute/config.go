package testcompute

import "time"

// Config holds configuration for the compute probe
type Config struct {
	BaseURL     string        // Base URL of the service
	NumProfiles int           // Number of profiles to generate
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Output file for generated profiles
	LogFile     string        // Log file for probe output
	Verbose     bool          // Enable verbose logging
}

// Profile is one randomized compute request the probe replays.
type Profile struct {
	ProfileID string             `json:"profile_id"`
	Overrides map[string]float64 `json:"overrides,omitempty"`

	// ZeroedActivity is a catalog id an override forces out of the figures
	// (zero or negative quantity). Empty when no override does that.
	ZeroedActivity string `json:"-"`
}

// computeReply is the slice of the compute response the probe inspects.
type computeReply struct {
	DatasetID string `json:"dataset_id"`
	Figures   struct {
		Bubble []struct {
			ActivityID string `json:"activity_id"`
		} `json:"bubble"`
	} `json:"figures"`
}

// activitiesReply mirrors GET /activities.
type activitiesReply struct {
	DatasetVersion string `json:"dataset_version"`
	Activities     []struct {
		ID              string  `json:"id"`
		Category        string  `json:"category"`
		DefaultQuantity float64 `json:"default_quantity"`
	} `json:"activities"`
}

// probeResult captures one profile's miss/replay round trip.
type probeResult struct {
	profile     Profile
	firstID     string // dataset_id from the first response
	secondID    string // dataset_id from the replay
	firstState  string // X-Flue-Cache on the first response
	secondState string // X-Flue-Cache on the replay
	excluded    bool   // zeroed activity absent from the figures
	err         error
}

// Stats holds probe statistics
type Stats struct {
	ProfilesGenerated   int
	RequestsSubmitted   int
	RequestsFailed      int
	CacheHitsObserved   int
	ReplaysNotCached    int
	DeterminismFailures int
	ExclusionFailures   int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
