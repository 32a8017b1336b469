package testcompute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitProfiles submits each profile twice using worker pools: the first
// request computes, the replay must come back from the cache with the same
// dataset id.
func submitProfiles(ctx context.Context, config *Config, profiles []Profile, stats *Stats) ([]probeResult, error) {
	log.Printf("📤 Submitting %d profiles (x2 each) with %d workers...", len(profiles), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/api/compute"

	// Counters for statistics
	var (
		submitted int64
		hits      int64
		notCached int64
		failed    int64
	)

	// Progress reporting
	var lastReport atomic.Int64
	reportInterval := 1 * time.Second

	type indexedProfile struct {
		index   int
		profile Profile
	}

	// Create worker pool
	results := make([]probeResult, len(profiles))
	profileChan := make(chan indexedProfile, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for item := range profileChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitProfilePair(ctx, client, url, item.profile)
					results[item.index] = result

					// Update counters
					atomic.AddInt64(&submitted, 1)
					switch {
					case result.err != nil:
						atomic.AddInt64(&failed, 1)
					case result.secondState == "hit":
						atomic.AddInt64(&hits, 1)
					default:
						atomic.AddInt64(&notCached, 1)
					}

					// Progress reporting
					now := time.Now().UnixNano()
					if last := lastReport.Load(); now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
						total := atomic.LoadInt64(&submitted)
						hit := atomic.LoadInt64(&hits)
						cold := atomic.LoadInt64(&notCached)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d profiles (hits: %d, not cached: %d, failed: %d)",
								total, len(profiles), hit, cold, fail)
						} else {
							fmt.Printf("\r📤 Submitted: %d/%d (hits: %d, not cached: %d, failed: %d)",
								total, len(profiles), hit, cold, fail)
						}
					}
				}
			}
		}()
	}

	// Send profiles to workers
	go func() {
		defer close(profileChan)
		for i, profile := range profiles {
			select {
			case <-ctx.Done():
				return
			case profileChan <- indexedProfile{index: i, profile: profile}:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.RequestsSubmitted = int(atomic.LoadInt64(&submitted)) * 2
	stats.CacheHitsObserved = int(atomic.LoadInt64(&hits))
	stats.ReplaysNotCached = int(atomic.LoadInt64(&notCached))
	stats.RequestsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Profile submission completed:
   Cache hits on replay: %d
   Replays not cached: %d
   Failed: %d
`, stats.CacheHitsObserved, stats.ReplaysNotCached, stats.RequestsFailed)

	return results, nil
}

// submitProfilePair submits the same profile twice and records both replies.
func submitProfilePair(ctx context.Context, client *HTTPClient, url string, profile Profile) probeResult {
	result := probeResult{profile: profile}

	firstID, firstState, err := submitOnce(ctx, client, url, profile, &result)
	if err != nil {
		result.err = fmt.Errorf("first request: %w", err)
		return result
	}
	result.firstID = firstID
	result.firstState = firstState

	secondID, secondState, err := submitOnce(ctx, client, url, profile, &result)
	if err != nil {
		result.err = fmt.Errorf("replay: %w", err)
		return result
	}
	result.secondID = secondID
	result.secondState = secondState

	return result
}

// submitOnce posts the profile and extracts the dataset id, cache state and
// figure exclusion from the reply.
func submitOnce(ctx context.Context, client *HTTPClient, url string, profile Profile, result *probeResult) (string, string, error) {
	resp, err := client.Post(ctx, url, profile)
	if err != nil {
		return "", "", err
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "", "", err
	}

	if resp.StatusCode != StatusOK {
		return "", "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var reply computeReply
	if err := unmarshalJSON(body, &reply); err != nil {
		return "", "", fmt.Errorf("failed to parse compute reply: %w", err)
	}

	if profile.ZeroedActivity != "" {
		result.excluded = true
		for _, row := range reply.Figures.Bubble {
			if row.ActivityID == profile.ZeroedActivity {
				result.excluded = false
				break
			}
		}
	}

	return reply.DatasetID, resp.Header.Get("X-Flue-Cache"), nil
}
