package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// intradayCmd represents the intraday command
var intradayCmd = &cobra.Command{
	Use:   "intraday",
	Short: "인트라데이 스냅샷 캐시",
	Long: `인트라데이 분봉 스냅샷을 조회하거나 캐시를 워밍합니다.

Subcommands:
  get   - 단일 종목 스냅샷 조회
  warm  - 여러 종목 캐시 워밍

Example:
  go run ./cmd/pulse intraday get AAPL
  go run ./cmd/pulse intraday get AAPL --force
  go run ./cmd/pulse intraday warm AAPL MSFT NVDA`,
}

var intradayGetCmd = &cobra.Command{
	Use:   "get [symbol]",
	Short: "단일 종목 스냅샷 조회",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntradayGet,
}

var intradayWarmCmd = &cobra.Command{
	Use:   "warm [symbol...]",
	Short: "여러 종목 캐시 워밍",
	Long: `지정한 종목들의 스냅샷을 미리 채웁니다.
종목을 지정하지 않으면 활성 종목 목록을 DB에서 읽어 워밍합니다.`,
	Args: cobra.ArbitraryArgs,
	RunE: runIntradayWarm,
}

var (
	intradayForce   bool
	intradayTail    int
	intradayWorkers int
)

func init() {
	rootCmd.AddCommand(intradayCmd)
	intradayCmd.AddCommand(intradayGetCmd)
	intradayCmd.AddCommand(intradayWarmCmd)

	intradayGetCmd.Flags().BoolVar(&intradayForce, "force", false, "캐시 무시하고 강제 재조회")
	intradayGetCmd.Flags().IntVar(&intradayTail, "tail", 5, "출력할 마지막 분봉 수")
	intradayWarmCmd.Flags().BoolVar(&intradayForce, "force", false, "캐시 무시하고 강제 재조회")
	intradayWarmCmd.Flags().IntVar(&intradayWorkers, "workers", 0, "워밍 동시 실행 수 (기본: config)")
}

func runIntradayGet(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(args[0])

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	cache, cleanup, err := initIntradayCache(cfg, log)
	if err != nil {
		return fmt.Errorf("init intraday cache: %w", err)
	}
	defer cleanup()

	snap, ok := cache.Get(context.Background(), symbol, intradayForce)
	if !ok {
		PrintError(fmt.Sprintf("No snapshot available for %s", symbol))
		return fmt.Errorf("snapshot unavailable: %s", symbol)
	}

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s  (%s)\n", snap.Symbol, snap.TradingDate.Format("2006-01-02"))
	PrintDoubleSeparator()
	fmt.Printf("  Fetched: %s\n", snap.FetchedAt.Format("15:04:05"))
	fmt.Printf("  Bars:    %d\n", len(snap.Bars))
	fmt.Println()

	tail := intradayTail
	if tail > len(snap.Bars) {
		tail = len(snap.Bars)
	}
	if tail > 0 {
		widths := []int{10, 10, 10, 10, 10, 12}
		PrintTableHeader([]string{"Time", "Open", "High", "Low", "Close", "Volume"}, widths)
		for _, bar := range snap.Bars[len(snap.Bars)-tail:] {
			PrintTableRow([]string{
				bar.Timestamp.Format("15:04:05"),
				fmt.Sprintf("%.2f", bar.Open),
				fmt.Sprintf("%.2f", bar.High),
				fmt.Sprintf("%.2f", bar.Low),
				fmt.Sprintf("%.2f", bar.Close),
				fmt.Sprintf("%d", bar.Volume),
			}, widths)
		}
		fmt.Println()
	}

	return nil
}

func runIntradayWarm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if intradayWorkers > 0 {
		cfg.Intraday.WarmWorkers = intradayWorkers
	}
	log := logger.New(cfg)

	cache, cleanup, err := initIntradayCache(cfg, log)
	if err != nil {
		return fmt.Errorf("init intraday cache: %w", err)
	}
	defer cleanup()

	ctx := context.Background()

	symbols := args
	if len(symbols) == 0 {
		symbols, err = loadActiveSymbols(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load active symbols: %w", err)
		}
		if len(symbols) == 0 {
			PrintWarning("No active symbols to warm")
			return nil
		}
	}

	fmt.Printf("Warming %d symbols...\n", len(symbols))

	warmed := cache.WarmMany(ctx, symbols, intradayForce)

	if warmed == len(symbols) {
		PrintSuccess(fmt.Sprintf("Warmed %d/%d symbols", warmed, len(symbols)))
	} else {
		PrintWarning(fmt.Sprintf("Warmed %d/%d symbols", warmed, len(symbols)))
	}

	return nil
}

// loadActiveSymbols reads the warm universe from the tickers table
func loadActiveSymbols(ctx context.Context, cfg *config.Config) ([]string, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	rows, err := db.Pool.Query(ctx, `
		SELECT symbol FROM tickers
		WHERE is_active = true
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}
