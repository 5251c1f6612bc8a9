package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/stockflow/internal/app"
	"github.com/rl1809/stockflow/internal/port"
)

const stressProductID = "stress-test-product"

type stressResult struct {
	Stock      int
	Requests   int
	Successful int
	Failed     int
	FinalStock int
	Duration   time.Duration
}

// Oversold reports whether the reservations disagree with the starting stock.
func (r stressResult) Oversold() bool {
	expected := min(r.Stock, r.Requests)
	return r.Successful != expected || r.Failed != r.Requests-expected || r.FinalStock != r.Stock-expected
}

func (c *cli) stressCmd() *cobra.Command {
	var stock, requests int
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Race concurrent single-unit reservations against the stock cache",
		Long: `Set a product's cached stock and fire concurrent one-unit reservations at it.

Exactly min(stock, requests) reservations must succeed and the remaining
stock must match. Uses Redis when REDIS_ADDR is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, closeCache, err := app.OpenCache(ctx, c.cfg.Redis, c.log)
			if err != nil {
				return err
			}
			defer closeCache()
			defer cache.DeleteStock(context.WithoutCancel(ctx), stressProductID)

			result, err := runStress(ctx, cache, stock, requests)
			if err != nil {
				return err
			}
			printStress(cmd.OutOrStdout(), result)
			if result.Oversold() {
				return fmt.Errorf("stress test failed")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&stock, "stock", 20, "initial stock")
	cmd.Flags().IntVar(&requests, "requests", 50, "concurrent reservations")
	return cmd
}

func runStress(ctx context.Context, cache port.CacheRepository, stock, requests int) (stressResult, error) {
	if err := cache.SetStock(ctx, stressProductID, stock); err != nil {
		return stressResult{}, fmt.Errorf("set stock: %w", err)
	}

	var successCount, failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	line := []port.StockLine{{ProductID: stressProductID, Quantity: 1}}
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := cache.ReserveStock(ctx, line)
			if err == nil && ok {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()

	final, _, err := cache.GetStock(ctx, stressProductID)
	if err != nil {
		return stressResult{}, fmt.Errorf("get stock: %w", err)
	}
	return stressResult{
		Stock:      stock,
		Requests:   requests,
		Successful: int(successCount.Load()),
		Failed:     int(failCount.Load()),
		FinalStock: final,
		Duration:   time.Since(start),
	}, nil
}

func printStress(w io.Writer, r stressResult) {
	fmt.Fprintln(w, "========== STRESS TEST RESULTS ==========")
	fmt.Fprintf(w, "Initial Stock:    %d\n", r.Stock)
	fmt.Fprintf(w, "Total Requests:   %d\n", r.Requests)
	fmt.Fprintf(w, "Successful:       %d\n", r.Successful)
	fmt.Fprintf(w, "Failed:           %d\n", r.Failed)
	fmt.Fprintf(w, "Final Stock:      %d\n", r.FinalStock)
	fmt.Fprintf(w, "Duration:         %v\n", r.Duration)
	fmt.Fprintln(w, "==========================================")
	if r.Oversold() {
		fmt.Fprintln(w, "FAIL: reservations do not match the initial stock")
	} else {
		fmt.Fprintln(w, "PASS: no stock oversold")
	}
}
