package main

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dvcrn/bearer-proxy/internal/client"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <path>",
		Short: "Send N concurrent GETs and report how many refreshes they caused",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
	cmd.Flags().IntP("requests", "n", 10, "number of concurrent requests")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	n, _ := cmd.Flags().GetInt("requests")
	if n < 1 {
		return fmt.Errorf("--requests must be at least 1, got %d", n)
	}

	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	var ok, failed atomic.Int64
	start := time.Now()

	// Failures are counted, not returned, so one error does not cancel the rest.
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := a.Client.Do(cmd.Context(), &client.Descriptor{Method: http.MethodGet, URL: args[0]})
			if err != nil {
				failed.Add(1)
				log.Debug().Err(err).Msg("Bench request failed")
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Fprintf(cmd.OutOrStdout(), "requests=%d ok=%d failed=%d refreshes=%d duration=%s\n",
		n, ok.Load(), failed.Load(), a.Dispatcher.Refreshes(), time.Since(start).Round(time.Millisecond))
	return nil
}
