// Package lookup provides the blocking name-to-address backends behind the
// Loom resolver: a function that maps a host name to a single address
// string, executed on a worker goroutine, never on the loop.
//
// # Backends
//
//   - Client queries DNS directly with concurrent A and AAAA lookups,
//     retries, and configurable resolvers, preferring an IPv4 answer when
//     both families respond.
//   - System delegates to the operating system's resolver, so hosts files
//     and NSS configuration are honored.
//
// Both satisfy the Backend interface; their HostByName method is what gets
// wired into the resolver as its lookup function.
//
// # Basic Usage
//
// Create a DNS-backed client with default settings:
//
//	backend := lookup.NewClient(5 * time.Second)
//	addr, err := backend.HostByName("example.com")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(addr)
//
// Configure the client with custom options:
//
//	backend := lookup.NewClient(
//		5*time.Second,
//		lookup.WithResolvers([]string{"1.1.1.1:53", "8.8.8.8:53"}),
//		lookup.WithRetries(2),
//	)
//
// # Error Handling
//
// The package defines several sentinel errors:
//   - ErrNoRecords: the response carried no usable address records
//   - ErrEmptyMsg: the DNS response message was empty
//   - ErrEmptyHostname: an empty host name was provided
//
// When both the A and AAAA queries fail, the individual errors are
// aggregated into the returned error.
//
// # Metrics
//
// Instrument decorates any Backend with Prometheus lookup counters and a
// duration histogram, labeled by backend name and outcome.
package lookup
