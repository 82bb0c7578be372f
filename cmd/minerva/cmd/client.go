package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	pb "github.com/msto63/minerva/api/gen/minerva"
	"github.com/msto63/minerva/internal/minerva/store"
	coreGrpc "github.com/msto63/minerva/pkg/core/grpc"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

var createBusiness bool

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(func(ctx context.Context, client pb.MinervaClient) error {
			start := time.Now()
			if _, err := client.Ping(ctx, &emptypb.Empty{}); err != nil {
				return err
			}
			fmt.Printf("pong from %s in %v\n", appConfig.Client.Target, time.Since(start).Round(time.Microsecond))
			return nil
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name> <document>",
	Short: "Register a customer",
	Example: `  minerva create "Fulano de Tal" 888.888.888-88
  minerva create --business "Empresa S/A" 99.999.999/9999-99`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, client pb.MinervaClient) error {
			c, err := client.CreateCustomer(ctx, &pb.NewCustomerRequest{
				Name:       args[0],
				IsBusiness: createBusiness,
				Document:   args[1],
			})
			if err != nil {
				return err
			}
			return printCustomers(os.Stdout, outputFormat, []store.Customer{fromProto(c)})
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, client pb.MinervaClient) error {
			c, err := client.GetCustomer(ctx, &pb.CustomerIDRequest{Id: id})
			if err != nil {
				return err
			}
			return printCustomers(os.Stdout, outputFormat, []store.Customer{fromProto(c)})
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a customer (deleting an unknown id succeeds)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, client pb.MinervaClient) error {
			if _, err := client.DeleteCustomer(ctx, &pb.CustomerIDRequest{Id: id}); err != nil {
				return err
			}
			fmt.Printf("deleted %d\n", id)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Stream all customers page by page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStreamClient(func(ctx context.Context, client pb.MinervaClient) error {
			stream, err := client.ListCustomers(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}

			var all []store.Customer
			pages := 0
			for {
				page, err := stream.Recv()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				pages++
				for _, c := range page.GetCustomers() {
					all = append(all, fromProto(c))
				}
			}

			if err := printCustomers(os.Stdout, outputFormat, all); err != nil {
				return err
			}
			if outputFormat == "table" {
				fmt.Printf("\n%d customers in %d pages\n", len(all), pages)
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{pingCmd, createCmd, getCmd, deleteCmd, listCmd} {
		c.Flags().String("target", "", "server address (default localhost:50051)")
		c.Flags().Duration("timeout", 0, "call timeout (default 10s)")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{createCmd, getCmd, listCmd} {
		addOutputFlag(c)
	}
	createCmd.Flags().BoolVar(&createBusiness, "business", false, "the customer is a company")
}

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return int32(id), nil
}

func dial() (*grpc.ClientConn, error) {
	cfg := coreGrpc.DefaultClientConfig(appConfig.Client.Target)
	cfg.Timeout = appConfig.Client.Timeout.Duration
	return coreGrpc.Dial(cfg)
}

// withClient runs fn with a client and a context bounded by the call timeout
func withClient(fn func(ctx context.Context, client pb.MinervaClient) error) error {
	conn, err := dial()
	if err != nil {
		printError("connection failed", err)
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), appConfig.Client.Timeout.Duration)
	defer cancel()

	if err := fn(ctx, pb.NewMinervaClient(conn)); err != nil {
		printError("request failed", err)
		return err
	}
	return nil
}

// withStreamClient is withClient without a deadline, for streams that may
// outlive the call timeout
func withStreamClient(fn func(ctx context.Context, client pb.MinervaClient) error) error {
	conn, err := dial()
	if err != nil {
		printError("connection failed", err)
		return err
	}
	defer conn.Close()

	if err := fn(context.Background(), pb.NewMinervaClient(conn)); err != nil {
		printError("request failed", err)
		return err
	}
	return nil
}

func fromProto(c *pb.Customer) store.Customer {
	return store.Customer{
		ID:       c.GetId(),
		Category: int16(c.GetCategory()),
		Name:     c.GetName(),
		Business: c.GetIsBusiness(),
		Document: c.GetDocument(),
		Active:   c.GetActive(),
		Blocked:  c.GetBlocked(),
	}
}
