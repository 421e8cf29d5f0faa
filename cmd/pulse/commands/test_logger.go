package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Logger 기능 테스트",
	Long: `구조화된 로깅 기능을 테스트합니다.

Example:
  go run ./cmd/pulse test-logger`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Logger Test ===")

	fmt.Println("1. JSON Format (Production)")
	fmt.Println("--------------------------------")
	jsonLog := logger.New(&config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	})
	jsonLog.Info("Service started")
	jsonLog.Warn("High memory usage detected")
	jsonLog.Error("Failed to reach upstream API")
	fmt.Println()

	fmt.Println("2. Console Format (Development)")
	fmt.Println("--------------------------------")
	consoleLog := logger.New(&config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "console",
	})
	consoleLog.Debug("Debugging application flow")
	consoleLog.Info("Request received from client")
	consoleLog.Warn("Cache miss, fetching from upstream")
	fmt.Println()

	fmt.Println("3. Structured Logging with Fields")
	fmt.Println("--------------------------------")
	jsonLog.WithField("symbol", "AAPL").Info("Snapshot served from cache")
	jsonLog.WithFields(map[string]interface{}{
		"symbol": "MSFT",
		"bars":   390,
		"age_s":  12,
	}).Info("Snapshot refreshed")
	fmt.Println()

	fmt.Println("4. Error Logging")
	fmt.Println("--------------------------------")
	err := errors.New("connection timeout")
	jsonLog.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"endpoint":    "/time_series",
		}).
		Error("Upstream fetch failed after retries")
	fmt.Println()

	PrintSuccess("All logger tests completed!")
	return nil
}
