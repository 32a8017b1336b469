package testcompute

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/emberline/flue/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor     = 1000000
	quantityCaseDivisor    = 8
	maxOverridesPerProfile = 4
)

// Constants for quantity generation ranges.
const (
	negativeQuantityMin   = 0.1
	negativeQuantityRange = 4.9
	lightQuantityMin      = 0.1
	lightQuantityRange    = 1.9
	typicalQuantityMin    = 1.0
	typicalQuantityRange  = 9.0
	heavyQuantityMin      = 10.0
	heavyQuantityRange    = 90.0
	extremeQuantityMin    = 100.0
	extremeQuantityRange  = 900.0
	fractionalMin         = 0.01
	fractionalRange       = 0.99
	wideQuantityMin       = 0.1
	wideQuantityRange     = 49.9
)

// Constants for quantity distribution cases.
const (
	caseZeroQuantity     = 0
	caseNegativeQuantity = 1
	caseLightQuantity    = 2
	caseTypicalQuantity  = 3
	caseHeavyQuantity    = 4
	caseExtremeQuantity  = 5
	caseFractional       = 6
	caseWideRange        = 7
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomIndex returns a random index below n using crypto/rand.
func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateProfiles creates the specified number of profiles with unique
// profile IDs and randomized overrides over the given activity ids.
func generateProfiles(ctx context.Context, config *Config, activityIDs []string, stats *Stats) ([]Profile, error) {
	logger.Get().Info(ctx, "generating profiles with unique profile IDs", logger.Int("numProfiles", config.NumProfiles))

	if len(activityIDs) == 0 {
		return nil, fmt.Errorf("no activity ids to draw overrides from")
	}

	profiles := make([]Profile, config.NumProfiles)

	// Pre-allocate profile IDs to ensure uniqueness
	profileIDs := make([]string, config.NumProfiles)
	for i := 0; i < config.NumProfiles; i++ {
		profileIDs[i] = uuid.New().String()
	}

	// Generate profiles concurrently
	type profileResult struct {
		index   int
		profile Profile
		err     error
	}

	resultChan := make(chan profileResult, config.NumProfiles)

	// Use worker pool for profile generation
	workerCount := minInt(config.Workers, config.NumProfiles)
	profilesPerWorker := config.NumProfiles / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * profilesPerWorker
		end := start + profilesPerWorker
		if worker == workerCount-1 {
			end = config.NumProfiles // Last worker gets remaining profiles
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- profileResult{index: i, err: ctx.Err()}
					return
				default:
					profile := generateSingleProfile(profileIDs[i], activityIDs)
					resultChan <- profileResult{index: i, profile: profile, err: nil}
				}
			}
		}(start, end)
	}

	// Collect results
	for i := 0; i < config.NumProfiles; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during profile generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate profile %d: %w", result.index, result.err)
			}
			profiles[result.index] = result.profile
		}
	}

	stats.ProfilesGenerated = len(profiles)
	logger.Get().Info(ctx, "generated profiles successfully", logger.Int("count", len(profiles)))

	return profiles, nil
}

// generateSingleProfile creates a single profile with random overrides drawn
// from the activity ids.
func generateSingleProfile(profileID string, activityIDs []string) Profile {
	count := randomIndex(minInt(maxOverridesPerProfile, len(activityIDs)) + 1)

	overrides := make(map[string]float64, count)
	for len(overrides) < count {
		id := activityIDs[randomIndex(len(activityIDs))]
		if _, ok := overrides[id]; ok {
			continue
		}
		overrides[id] = generateVariedQuantity()
	}

	profile := Profile{ProfileID: profileID}
	if len(overrides) > 0 {
		profile.Overrides = overrides
	}

	// Zero and negative overrides both drop the activity from the figures.
	for id, quantity := range overrides {
		if quantity <= 0 {
			profile.ZeroedActivity = id
			break
		}
	}

	return profile
}

// generateVariedQuantity creates an override quantity with varied distribution.
func generateVariedQuantity() float64 {
	randNum, _ := rand.Int(rand.Reader, big.NewInt(quantityCaseDivisor))
	switch randNum.Int64() {
	case caseZeroQuantity:
		// Activity switched off entirely
		return 0
	case caseNegativeQuantity:
		// Negative input, clamped to zero by the service
		return -(negativeQuantityMin + getRandomFloat()*negativeQuantityRange)
	case caseLightQuantity:
		// Light usage (0.1 - 2.0)
		return lightQuantityMin + getRandomFloat()*lightQuantityRange
	case caseTypicalQuantity:
		// Typical usage (1.0 - 10.0) - most common
		return typicalQuantityMin + getRandomFloat()*typicalQuantityRange
	case caseHeavyQuantity:
		// Heavy usage (10 - 100)
		return heavyQuantityMin + getRandomFloat()*heavyQuantityRange
	case caseExtremeQuantity:
		// Extreme usage (100 - 1000) - rare
		return extremeQuantityMin + getRandomFloat()*extremeQuantityRange
	case caseFractional:
		// Fractional usage (0.01 - 1.0)
		return fractionalMin + getRandomFloat()*fractionalRange
	case caseWideRange:
		// Random across a wide range (0.1 - 50)
		return wideQuantityMin + getRandomFloat()*wideQuantityRange
	default:
		return wideQuantityMin + getRandomFloat()*wideQuantityRange
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
