// Command `loom` is the end-user CLI for the Loom daemon.
//
// Loom is a host-resolution service: a daemon runs blocking name lookups on
// a worker pool behind a single dispatch loop, and the CLI queries it over
// a Unix domain socket.
//
// Usage:
//
//	loom resolve <host> [--timeout <duration>]  - Resolve a host to one address
//	loom addrinfo <host> <port>                 - List connectable endpoints
//	loom status                                 - Show daemon status
//	loom version                                - Show version information
//
// Examples:
//
//	loom resolve example.com                    - Resolve with the daemon's default bound
//	loom resolve example.com --timeout 5s       - Resolve with a 5 second bound
//	loom addrinfo example.com 443               - Endpoints for example.com:443
//
// Durations use Go duration syntax ("30s", "5m", "1m30s", etc.).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lc/loom/internal/buildinfo"
	"github.com/lc/loom/internal/config"
	"github.com/lc/loom/pkg/client"
)

func main() {
	cfg, err := config.New().Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cli := client.New(cfg.Socket.Path)

	root := &cobra.Command{
		Use:   "loom",
		Short: "Loom host-resolution CLI",
		Long: `Loom resolves host names through a background daemon that runs blocking
lookups on a worker pool without ever blocking its dispatch loop.`,
	}
	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show version information for the Loom CLI and daemon.`,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}
	// ---- resolve command ----
	var resolveTimeout time.Duration
	resolveCmd := &cobra.Command{
		Use:   "resolve <host>",
		Short: "Resolve a host to a single address",
		Long: `Resolve a host name to a single connectable address.

The lookup runs on the daemon's worker pool, bounded by the daemon's
configured timeout unless --timeout overrides it.

Examples:
  loom resolve example.com              Resolve with the default bound
  loom resolve example.com --timeout 5s Resolve with a 5 second bound`,
		Example: "loom resolve example.com --timeout 5s",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			host := args[0]

			ctx, cancel := context.WithTimeout(context.Background(), clientTimeout(resolveTimeout))
			defer cancel()

			resp, err := cli.Resolve(ctx, host, resolveTimeout)
			if err != nil {
				return err
			}

			color.New(color.FgGreen, color.Bold).Printf("✓ ")
			color.New(color.FgHiWhite).Printf("%s ", resp.Host)
			color.New(color.FgGreen).Printf("→ ")
			color.New(color.FgHiGreen, color.Bold).Printf("%s ", resp.Addr)
			color.New(color.FgYellow).Printf("(%s)\n", resp.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 0,
		"bound for the lookup (0 = daemon default)")

	// ---- addrinfo command ----
	addrinfoCmd := &cobra.Command{
		Use:   "addrinfo <host> <port>",
		Short: "List connectable endpoints for a host and port",
		Long: `Resolve a host and port to an ordered list of connectable endpoints.
Shows address family, socket type, protocol, and socket address.`,
		Example: "loom addrinfo example.com 443",
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			host := args[0]
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), clientTimeout(0))
			defer cancel()

			resp, err := cli.AddrInfo(ctx, host, port)
			if err != nil {
				return err
			}
			if len(resp.Endpoints) == 0 {
				color.Yellow("No endpoints found.")
				return nil
			}

			// Create a new table
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Family", "Type", "Protocol", "Host", "Port"})
			table.SetHeaderColor(
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
			)
			table.SetBorder(false)
			table.SetColumnColor(
				tablewriter.Colors{tablewriter.FgYellowColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
				tablewriter.Colors{tablewriter.FgGreenColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
			)

			// Add data to the table
			for _, ep := range resp.Endpoints {
				table.Append([]string{
					ep.Family, ep.Type, ep.Protocol, ep.Host, strconv.Itoa(ep.Port),
				})
			}

			color.New(color.Bold).Printf("ENDPOINTS FOR %s:%d\n", host, port)
			table.Render()
			return nil
		},
	}

	// ---- status command ----
	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show daemon status",
		Long:    `Show the daemon's pending calls, worker-pool activity, uptime, and version.`,
		Example: "loom status",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			st, err := cli.Status(ctx)
			if err != nil {
				return err
			}

			color.New(color.Bold).Println("LOOM DAEMON STATUS:")
			fmt.Printf("  pending calls: %d\n", st.PendingCalls)
			fmt.Printf("  pool: %d workers, %d active, %d queued\n",
				st.PoolWorkers, st.PoolActive, st.PoolQueued)
			fmt.Printf("  uptime: %s\n", st.Uptime.Round(time.Second))
			fmt.Printf("  version: %s (%s)\n", st.Version, st.Commit)
			return nil
		},
	}

	root.AddCommand(resolveCmd, addrinfoCmd, statusCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// clientTimeout pads the request deadline past the daemon-side lookup
// bound so the daemon, not the HTTP client, reports timeouts.
func clientTimeout(lookupBound time.Duration) time.Duration {
	if lookupBound <= 0 {
		return 2 * time.Minute
	}
	return lookupBound + 5*time.Second
}
