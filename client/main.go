package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pvlbzn/aws-stack-application/logging"
	"github.com/pvlbzn/aws-stack-application/telemetry"
)

type options struct {
	proto       string
	workers     int
	count       int
	headers     int
	insecure    bool
	metricsAddr string
}

func newRootCmd(log *zap.Logger) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "client URL",
		Short:        "Send requests to a greeting responder and check the replies",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.metricsAddr != "" {
				metrics, err := telemetry.Serve(ctx, opts.metricsAddr, telemetry.ApplicationResource{
					ServiceName: "client",
					Env:         opts.proto,
				}, log)
				if err != nil {
					return err
				}
				defer func() {
					if err := metrics.Close(context.Background()); err != nil {
						log.Error("error shutting down metrics", zap.Error(err))
					}
				}()
			}

			client, err := NewClient(opts.proto, opts.insecure, opts.headers)
			if err != nil {
				return err
			}
			failed := probe(ctx, log, client, args[0], opts.workers, opts.count)
			if failed > 0 {
				return fmt.Errorf("%d of %d requests failed", failed, opts.workers*opts.count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.proto, "proto", "http1.1", "protocol to use: http1.1 or http2 (https URLs only)")
	cmd.Flags().IntVar(&opts.workers, "workers", 3, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.count, "count", 1, "requests per worker")
	cmd.Flags().IntVar(&opts.headers, "headers", 0, "number of custom headers added to each request")
	cmd.Flags().BoolVar(&opts.insecure, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

// probe runs workers goroutines each sending count requests and returns the
// number of failed requests.
func probe(ctx context.Context, log *zap.Logger, c *Client, url string, workers, count int) int64 {
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < count; j++ {
				body, err := c.Fetch(ctx, url)
				if err != nil {
					failed.Add(1)
					log.Error("request failed", zap.String("url", url), zap.Error(err))
					continue
				}
				log.Debug("response", zap.String("body", body))
			}
		}()
	}
	wg.Wait()
	return failed.Load()
}

func main() {
	log := logging.New(os.Stdout)
	if err := newRootCmd(log).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
