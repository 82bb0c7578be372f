package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	pb "github.com/msto63/minerva/api/gen/minerva"
	"github.com/msto63/minerva/internal/minerva/stress"
	"github.com/spf13/cobra"
)

var (
	stressWorkers    int
	stressMaxBatches int
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run concurrent clients against a server",
	Long: `Run many concurrent clients against a running server. Each client
pings, registers batches of sample customers, reads some of them back,
streams the full listing and deletes what it created.

Without --workers a random number between 15 and 50 clients is used.`,
	Args: cobra.NoArgs,
	RunE: runStress,
}

func init() {
	rootCmd.AddCommand(stressCmd)

	f := stressCmd.Flags()
	f.String("target", "", "server address (default localhost:50051)")
	f.IntVar(&stressWorkers, "workers", 0, "number of concurrent clients (0 picks 15..50)")
	f.IntVar(&stressMaxBatches, "max-batches", 49, "maximum sample batches per client")
	addOutputFlag(stressCmd)
}

func runStress(cmd *cobra.Command, _ []string) error {
	conn, err := dial()
	if err != nil {
		printError("connection failed", err)
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := stress.DefaultConfig()
	cfg.Workers = stressWorkers
	cfg.MaxBatches = stressMaxBatches

	fmt.Fprintf(os.Stderr, "stress run against %s\n", appConfig.Client.Target)
	res, err := stress.NewRunner(pb.NewMinervaClient(conn), cfg).Run(ctx)
	if err != nil {
		printError("stress run aborted", err)
	}

	if outputFormat != "table" {
		if encErr := encode(os.Stdout, outputFormat, res); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Printf("workers:   %d\n", res.Workers)
	fmt.Printf("created:   %d\n", res.Created)
	fmt.Printf("fetched:   %d\n", res.Fetched)
	fmt.Printf("listed:    %d customers in %d pages\n", res.Listed, res.Pages)
	fmt.Printf("deleted:   %d\n", res.Deleted)
	fmt.Printf("failures:  %d\n", res.Failures)
	fmt.Printf("duration:  %v\n", res.Duration.Round(time.Millisecond))
	return err
}
