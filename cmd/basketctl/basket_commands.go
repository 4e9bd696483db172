package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/stackfolio/basketd/client"
)

// newClient builds an API client from the global flags.
func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func listBasketsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the basket catalog",
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			baskets, err := cl.ListBaskets(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list baskets: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(baskets, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal baskets: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			for _, b := range baskets {
				status := ""
				if b.Disabled {
					status = " (unavailable)"
				}
				fmt.Printf("%-18s %s%s\n", b.ID, b.Name, status)
				fmt.Printf("    risk: %-8s assets: %d", b.Risk, len(b.Items))
				if len(b.Tags) > 0 {
					fmt.Printf("  tags: %s", strings.Join(b.Tags, ", "))
				}
				fmt.Printf("\n")
			}
			return nil
		},
	}
}

func getBasketCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one basket with its weights",
		ArgsUsage: "BASKET_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("basket ID is required")
			}

			cl := newClient(c)
			b, err := cl.GetBasket(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get basket: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(b, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal basket: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("%s - %s\n", b.ID, b.Name)
			fmt.Printf("%s\n\n", b.Description)
			if b.Disabled {
				fmt.Printf("UNAVAILABLE: %s\n\n", b.DisabledReason)
			}
			for _, it := range b.Items {
				fmt.Printf("  %6.2f%%  %-8s %s\n", it.WeightPct, it.Symbol, it.Name)
			}
			return nil
		},
	}
}

func quoteBasketCommand() *cli.Command {
	return &cli.Command{
		Name:      "quote",
		Usage:     "Preview allocations and execution quotes for a basket purchase",
		ArgsUsage: "BASKET_ID",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "total",
				Aliases:  []string{"t"},
				Usage:    "Total USD to invest",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("basket ID is required")
			}

			cl := newClient(c)
			quotes, err := cl.QuoteBasket(context.Background(), c.Args().Get(0), c.Float64("total"))
			if err != nil {
				return fmt.Errorf("failed to quote basket: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(quotes, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal quotes: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			for _, q := range quotes {
				fmt.Printf("  %-44s  $%.2f  (%d smallest units)\n", q.Mint, q.USD, q.Smallest)
			}
			return nil
		},
	}
}

func buyBasketCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Quote and buy a basket immediately",
		ArgsUsage: "BASKET_ID",
		Description: `Fetches a fresh quote batch and executes the purchase in one go.
Swaps are submitted sequentially; on a mid-batch failure the signatures
confirmed before the failure are printed so you know what executed.`,
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "total",
				Aliases:  []string{"t"},
				Usage:    "Total USD to invest",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("basket ID is required")
			}

			basketID := c.Args().Get(0)
			total := c.Float64("total")
			cl := newClient(c)
			ctx := context.Background()

			// The server executes the quotes from the most recent preview.
			if _, err := cl.QuoteBasket(ctx, basketID, total); err != nil {
				return fmt.Errorf("failed to quote basket: %w", err)
			}

			sigs, err := cl.BuyBasket(ctx, basketID, total)
			if err != nil {
				if len(sigs) > 0 {
					fmt.Fprintf(os.Stderr, "Partial completion: %d swap(s) confirmed before the failure:\n", len(sigs))
					for _, sig := range sigs {
						fmt.Fprintf(os.Stderr, "  %s\n", sig)
					}
				}
				return fmt.Errorf("buy failed: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(sigs, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Bought %s for $%.2f (%d swaps confirmed)\n", basketID, total, len(sigs))
			for _, sig := range sigs {
				fmt.Printf("  %s\n", sig)
			}
			return nil
		},
	}
}

func dcaBasketCommand() *cli.Command {
	return &cli.Command{
		Name:      "dca",
		Usage:     "Schedule a basket purchase as recurring orders",
		ArgsUsage: "BASKET_ID",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "total",
				Aliases:  []string{"t"},
				Usage:    "Total USD to invest across all orders",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "orders",
				Aliases: []string{"n"},
				Usage:   "Number of orders (0 picks the server default for the interval)",
			},
			&cli.Int64Flag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Interval between orders in seconds (86400 daily, 604800 weekly, 2628000 monthly)",
				Value:   604800,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("basket ID is required")
			}

			cl := newClient(c)
			msgs, err := cl.StartDCA(context.Background(), c.Args().Get(0),
				c.Float64("total"), c.Int("orders"), c.Int64("interval"))
			if err != nil {
				if len(msgs) > 0 {
					fmt.Fprintf(os.Stderr, "Partial completion: %d order(s) created before the failure\n", len(msgs))
				}
				return fmt.Errorf("dca failed: %w", err)
			}

			for _, msg := range msgs {
				fmt.Println(msg)
			}
			return nil
		},
	}
}

func recurringCommand() *cli.Command {
	return &cli.Command{
		Name:      "recurring",
		Usage:     "Set up a standalone recurring buy of one asset",
		ArgsUsage: "SYMBOL_OR_MINT",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:     "per-order",
				Usage:    "USD to spend per order",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "orders",
				Aliases: []string{"n"},
				Usage:   "Number of orders (0 picks the server default for the interval)",
			},
			&cli.Int64Flag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Interval between orders in seconds",
				Value:   604800,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("asset symbol or mint is required")
			}

			asset := c.Args().Get(0)
			// Mints are long base58 strings; anything short is a symbol.
			mint, symbol := "", ""
			if len(asset) > 20 {
				mint = asset
			} else {
				symbol = asset
			}

			cl := newClient(c)
			rb, err := cl.StartRecurringBuy(context.Background(), mint, symbol,
				c.Float64("per-order"), c.Int("orders"), c.Int64("interval"))
			if err != nil {
				return fmt.Errorf("recurring buy failed: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(rb, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Recurring buy set: %d orders of $%.2f\n", rb.Orders, rb.PerOrderUSD)
			fmt.Printf("  Status:       %s\n", rb.Status)
			fmt.Printf("  Confirmation: %s\n", rb.ConfirmationID)
			return nil
		},
	}
}

func swapCommand() *cli.Command {
	return &cli.Command{
		Name:  "swap",
		Usage: "Execute a single immediate swap",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input-mint",
				Usage:    "Mint of the asset to sell",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output-mint",
				Usage:    "Mint of the asset to buy",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "amount",
				Usage:    "Amount to sell in smallest units of the input asset",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "slippage-bps",
				Usage: "Slippage tolerance in basis points (0 uses the server default)",
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			sig, err := cl.Swap(context.Background(),
				c.String("input-mint"), c.String("output-mint"),
				c.Uint64("amount"), c.Int("slippage-bps"))
			if err != nil {
				return fmt.Errorf("swap failed: %w", err)
			}

			fmt.Println(sig)
			return nil
		},
	}
}

func pricesCommand() *cli.Command {
	return &cli.Command{
		Name:  "prices",
		Usage: "Show display prices for catalog assets",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "mint",
				Usage: "Limit to specific mints (can be specified multiple times)",
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			prices, err := cl.Prices(context.Background(), c.StringSlice("mint"))
			if err != nil {
				return fmt.Errorf("failed to fetch prices: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(prices, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			for mint, price := range prices {
				fmt.Printf("  %-44s  $%.4f\n", mint, price)
			}
			return nil
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check whether the basketd server is up",
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("server unhealthy: %w", err)
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
