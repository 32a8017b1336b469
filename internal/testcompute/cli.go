package testcompute

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/emberline/flue/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "probe_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the compute probe.
func ShowHelp() {
	os.Stdout.WriteString(`Flue Compute Probe
==================

A concurrent tool for exercising the Flue compute service: it generates
randomized override profiles, submits each one twice, and verifies that
results are deterministic and that replays land in the cache.

Usage:
  go run cmd/test-compute/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8089")
  -profiles int
        Number of profiles to generate and submit (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated profiles (default: generated_profiles_TIMESTAMP.json)
  -log string
        Log file for probe output (default: probe_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Probe with default settings
  go run cmd/test-compute/main.go

  # Probe with custom parameters
  go run cmd/test-compute/main.go -profiles 5000 -workers 16 -url http://localhost:8089

  # Probe with verbose output
  go run cmd/test-compute/main.go -verbose -profiles 1000

  # Probe with custom log file
  go run cmd/test-compute/main.go -profiles 5000 -log my_probe.log
`)
}
