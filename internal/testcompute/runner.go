package testcompute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/emberline/flue/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete compute probe.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting flue compute probe",
		logger.String("baseURL", config.BaseURL),
		logger.Int("profiles", config.NumProfiles),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Fetch the activity catalog to draw overrides from
	activityIDs, err := fetchActivityIDs(ctx, config)
	if err != nil {
		return fmt.Errorf("activity catalog fetch failed: %w", err)
	}

	// Step 3: Generate profiles
	profiles, err := generateProfiles(ctx, config, activityIDs, stats)
	if err != nil {
		return fmt.Errorf("profile generation failed: %w", err)
	}

	// Step 4: Submit each profile twice concurrently
	results, err := submitProfiles(ctx, config, profiles, stats)
	if err != nil {
		return fmt.Errorf("profile submission failed: %w", err)
	}

	// Step 5: Probe the export path
	if err := probeExport(ctx, config, profiles); err != nil {
		logger.Get().Warn(ctx, "export probe skipped", logger.Error(err))
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, config, results, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save profiles to file
	if err := saveProfilesToFile(ctx, config, profiles); err != nil {
		logger.Get().Warn(ctx, "failed to save profiles to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "probe completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// fetchActivityIDs retrieves the activity catalog the service computes over.
func fetchActivityIDs(ctx context.Context, config *Config) ([]string, error) {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/activities"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read activities reply: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("activities request failed with status: %d", resp.StatusCode)
	}

	var reply activitiesReply
	if err := unmarshalJSON(body, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse activities reply: %w", err)
	}

	ids := make([]string, 0, len(reply.Activities))
	for _, activity := range reply.Activities {
		ids = append(ids, activity.ID)
	}

	logger.Get().Info(ctx, "fetched activity catalog",
		logger.Int("activities", len(ids)),
		logger.String("datasetVersion", reply.DatasetVersion))

	return ids, nil
}

// probeExport submits one export request and checks that the reply is not
// served from the compute cache. Export needs a configured backend, so an
// upstream error only downgrades the probe to a warning.
func probeExport(ctx context.Context, config *Config, profiles []Profile) error {
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles to export")
	}

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/api/compute/export?format=csv"

	resp, err := client.Post(ctx, url, profiles[0])
	if err != nil {
		return fmt.Errorf("failed to submit export request: %w", err)
	}

	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read export reply: %w", err)
	}

	if state := resp.Header.Get("X-Flue-Cache"); state != "" {
		return fmt.Errorf("export reply unexpectedly carried cache state %q", state)
	}

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("export unavailable (status %d), backend not configured?", resp.StatusCode)
	}

	logger.Get().Info(ctx, "export probe passed", logger.String("contentType", resp.Header.Get("Content-Type")))
	return nil
}

// saveProfilesToFile saves the generated profiles to a JSON file.
func saveProfilesToFile(ctx context.Context, config *Config, profiles []Profile) error {
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_profiles_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write profiles to file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, profile := range profiles {
		jsonData, err := marshalJSON(profile)
		if err != nil {
			return fmt.Errorf("failed to marshal profile %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write profile %d: %w", i, err)
		}

		// Add comma except for last profile
		if i < len(profiles)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "profiles saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final probe statistics.
func displayFinalStats(stats *Stats) {
	var hitRate, requestsPerSecond float64

	pairs := stats.RequestsSubmitted / 2
	if pairs > 0 {
		hitRate = float64(stats.CacheHitsObserved) / float64(pairs) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.RequestsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("profilesGenerated", stats.ProfilesGenerated),
		logger.Int("requestsSubmitted", stats.RequestsSubmitted),
		logger.Int("requestsFailed", stats.RequestsFailed),
		logger.Int("cacheHitsObserved", stats.CacheHitsObserved),
		logger.Int("replaysNotCached", stats.ReplaysNotCached),
		logger.Int("determinismFailures", stats.DeterminismFailures),
		logger.Int("exclusionFailures", stats.ExclusionFailures),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("cacheHitRate", hitRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
