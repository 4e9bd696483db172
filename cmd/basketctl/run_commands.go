package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	"github.com/stackfolio/basketd/client"
	natspkg "github.com/stackfolio/basketd/service/nats"
)

func listRunsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List persisted execution runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Filter by wallet address",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs to return",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of runs to skip",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			runs, err := cl.ListRuns(context.Background(),
				c.String("wallet"), c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			// Compile jq filters
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}
			if len(filters) > 0 {
				filtered := runs[:0]
				for _, run := range runs {
					match, err := matchesJQ(filters, run)
					if err != nil {
						return err
					}
					if match {
						filtered = append(filtered, run)
					}
				}
				runs = filtered
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal runs: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			for _, run := range runs {
				printRunSummary(&run)
			}
			return nil
		},
	}
}

func getRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one run with its confirmed steps",
		ArgsUsage: "RUN_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("run ID is required")
			}

			cl := newClient(c)
			run, err := cl.GetRun(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(run, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal run: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			printRunSummary(run)
			for _, step := range run.Steps {
				fmt.Printf("    step %d: %s -> %s\n", step.Seq, step.AssetMint, step.ConfirmationID)
			}
			if run.Error != nil {
				fmt.Printf("    error: %s\n", *run.Error)
			}
			return nil
		},
	}
}

// watchRunsCommand blocks until a run event matching the given filters
// arrives on the stream.
func watchRunsCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Block until a run event matching criteria arrives",
		ArgsUsage: "[WALLET_ADDRESS]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Minute,
				Usage:   "How long to wait for a matching event",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			subject := "runs.*"
			if c.NArg() > 0 {
				subject = fmt.Sprintf("runs.%s", c.Args().Get(0))
			}

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			})
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			msgChan := make(chan jetstream.Msg, 10)
			go func() {
				_, _ = cons.Consume(func(msg jetstream.Msg) {
					msgChan <- msg
				})
			}()

			for {
				select {
				case msg := <-msgChan:
					msg.Ack()

					var raw map[string]interface{}
					if err := json.Unmarshal(msg.Data(), &raw); err != nil {
						continue
					}
					if len(filters) > 0 {
						match, err := matchesJQValue(filters, raw)
						if err != nil {
							return err
						}
						if !match {
							continue
						}
					}

					data, _ := json.Marshal(raw)
					fmt.Println(string(data))
					return nil

				case <-ctx.Done():
					return fmt.Errorf("timed out waiting for a matching run event")
				}
			}
		},
	}
}

func printRunSummary(run *client.Run) {
	completed := "-"
	if run.CompletedAt != nil {
		completed = run.CompletedAt.Format(time.RFC3339)
	}
	fmt.Printf("%-24s %-6s %-10s $%-10.2f %s\n",
		run.RunID, run.Mode, run.Status, run.TotalUSD, completed)
}

// compileJQFilters parses and compiles jq expressions.
func compileJQFilters(exprs []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return codes, nil
}

// matchesJQ round-trips v through JSON and evaluates every filter against it.
// All filters must evaluate truthy.
func matchesJQ(filters []*gojq.Code, v interface{}) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value for jq: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return false, fmt.Errorf("failed to unmarshal value for jq: %w", err)
	}
	return matchesJQValue(filters, generic)
}

func matchesJQValue(filters []*gojq.Code, v interface{}) (bool, error) {
	for _, code := range filters {
		iter := code.Run(v)
		res, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := res.(error); isErr {
			return false, fmt.Errorf("jq filter error: %w", err)
		}
		if !isTruthy(res) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy follows jq semantics: false and null are falsy, everything else
// is truthy.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
