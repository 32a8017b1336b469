package testcompute

import (
	"context"
	"fmt"
	"log"
)

// Maximum number of individual failures to print before truncating.
const maxReportedFailures = 10

// verifyResults checks determinism, cache behavior and override exclusion
// across all probe rounds.
func verifyResults(ctx context.Context, config *Config, results []probeResult, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if len(results) == 0 {
		return fmt.Errorf("no results to verify")
	}

	determinismFailures := verifyDeterminism(results, stats)
	exclusionFailures := verifyExclusions(results, stats)

	for i, msg := range determinismFailures {
		if i >= maxReportedFailures {
			log.Printf("   ... and %d more", len(determinismFailures)-maxReportedFailures)
			break
		}
		log.Printf("❌ %s", msg)
	}
	for i, msg := range exclusionFailures {
		if i >= maxReportedFailures {
			log.Printf("   ... and %d more", len(exclusionFailures)-maxReportedFailures)
			break
		}
		log.Printf("❌ %s", msg)
	}

	if stats.ReplaysNotCached > 0 {
		log.Printf("⚠️  Cache warning: %d replays were not served from cache (short TTL or eviction?)", stats.ReplaysNotCached)
	} else {
		log.Println("✅ Cache behavior verified: every replay was a hit")
	}

	displayProbeFindings(results, stats, config.Verbose)

	if stats.DeterminismFailures > 0 || stats.ExclusionFailures > 0 {
		return fmt.Errorf("%d determinism and %d exclusion failures", stats.DeterminismFailures, stats.ExclusionFailures)
	}

	log.Println("✅ Result verification completed")
	return nil
}

// verifyDeterminism checks that replaying an identical profile yields the
// same dataset id.
func verifyDeterminism(results []probeResult, stats *Stats) []string {
	var failures []string
	for _, result := range results {
		if result.err != nil {
			continue
		}
		if result.firstID == "" {
			failures = append(failures, fmt.Sprintf("profile %s: reply carried no dataset id", result.profile.ProfileID))
			continue
		}
		if result.firstID != result.secondID {
			failures = append(failures, fmt.Sprintf("profile %s: dataset id changed on replay (%s -> %s)",
				result.profile.ProfileID, result.firstID, result.secondID))
		}
	}

	stats.DeterminismFailures = len(failures)
	if len(failures) == 0 {
		log.Println("✅ Determinism verified: identical requests produced identical dataset ids")
	}
	return failures
}

// verifyExclusions checks that activities overridden to zero (or below) are
// absent from the returned figures.
func verifyExclusions(results []probeResult, stats *Stats) []string {
	var failures []string
	checked := 0
	for _, result := range results {
		if result.err != nil || result.profile.ZeroedActivity == "" {
			continue
		}
		checked++
		if !result.excluded {
			failures = append(failures, fmt.Sprintf("profile %s: zeroed activity %s still present in figures",
				result.profile.ProfileID, result.profile.ZeroedActivity))
		}
	}

	stats.ExclusionFailures = len(failures)
	if checked > 0 && len(failures) == 0 {
		log.Printf("✅ Exclusion verified: %d zeroed activities absent from figures", checked)
	}
	return failures
}

// displayProbeFindings shows sample results and aggregate ratios.
func displayProbeFindings(results []probeResult, stats *Stats, verbose bool) {
	completed := 0
	for _, result := range results {
		if result.err == nil {
			completed++
		}
	}

	if completed > 0 {
		hitRate := float64(stats.CacheHitsObserved) / float64(completed) * PercentageMultiplier
		log.Printf("🎯 Cache hit rate on replay: %.1f%% (%d/%d)", hitRate, stats.CacheHitsObserved, completed)
	}

	if verbose {
		sampleN := minInt(maxReportedFailures, len(results))
		log.Printf("📊 Sample of %d probe rounds:", sampleN)
		for i := 0; i < sampleN; i++ {
			result := results[i]
			if result.err != nil {
				log.Printf("   %d. %s - error: %v", i+1, result.profile.ProfileID, result.err)
				continue
			}
			log.Printf("   %d. %s - dataset: %s (first: %s, replay: %s, overrides: %d)",
				i+1, result.profile.ProfileID, result.firstID, result.firstState, result.secondState, len(result.profile.Overrides))
		}
	}
}
