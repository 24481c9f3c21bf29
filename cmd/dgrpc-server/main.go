// Command dgrpc-server is the thin CLI entry point wiring a dispatch.
// Dispatcher, a fsops.Store, and a callback.Registry behind the flag
// surface named in spec.md §6 ("Server: --address IPV4 ... --directory
// PATH ... --sequential, --allow-duplicates"). It is grounded on
// original_source/.../rfs_server/{args,main,server}.rs for the flag shape
// and moby-moby/cmd/dockerd for the cobra+pflag Go idiom; the TUI and
// data-collection benchmarking harness named in rfs_client are out of
// scope per spec.md §1.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ridgewireio/dgrpc/callback"
	"github.com/ridgewireio/dgrpc/dispatch"
	"github.com/ridgewireio/dgrpc/fsops"
	"github.com/ridgewireio/dgrpc/metrics"
	"github.com/ridgewireio/dgrpc/rpcsig"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultPort uint16 = 4013

func main() {
	cmd := newServerCmd()
	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("dgrpc-server: exiting")
	}
}

func newServerCmd() *cobra.Command {
	var (
		address         string
		port            uint16
		directory       string
		requestTimeout  time.Duration
		sequential      bool
		allowDuplicates bool
	)

	cmd := &cobra.Command{
		Use:   "dgrpc-server",
		Short: "Serve fsops remote methods over an unreliable datagram transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(serverOptions{
				address:         address,
				port:            port,
				directory:       directory,
				requestTimeout:  requestTimeout,
				sequential:      sequential,
				allowDuplicates: allowDuplicates,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&address, "address", "a", "127.0.0.1", "The IPv4 address for the server to bind to.")
	flags.Uint16VarP(&port, "port", "p", defaultPort, "The port number for the server to listen on.")
	cwd, _ := os.Getwd()
	flags.StringVarP(&directory, "directory", "d", cwd, "The starting directory (only logged; the fsops store is in memory and does not read it).")
	flags.DurationVarP(&requestTimeout, "request-timeout", "t", 2*time.Second, "The per-request timeout.")
	flags.BoolVar(&sequential, "sequential", false, "Process requests sequentially instead of in parallel.")
	flags.BoolVar(&allowDuplicates, "allow-duplicates", false, "Do not filter duplicate requests.")

	return cmd
}

type serverOptions struct {
	address         string
	port            uint16
	directory       string
	requestTimeout  time.Duration
	sequential      bool
	allowDuplicates bool
}

func run(opts serverOptions) error {
	log := logrus.StandardLogger()
	log.WithField("directory", opts.directory).Debug("dgrpc-server: starting")

	bindAddr := &net.UDPAddr{IP: net.ParseIP(opts.address), Port: int(opts.port)}
	conn, err := net.ListenUDP("udp", bindAddr)
	if err != nil {
		return fmt.Errorf("dgrpc-server: listen: %w", err)
	}
	defer conn.Close()

	reg := rpcsig.NewRegistry()
	store := fsops.NewStore()
	metricsReg := metrics.New(prometheus.DefaultRegisterer)
	cbReg := callback.New(callback.Config{Log: log, Metrics: metricsReg})

	proto := transport.DefaultProto{}
	fsops.Register(reg, store, cbReg, fsops.ServerSocket{
		Conn:    conn,
		Proto:   proto,
		Timeout: opts.requestTimeout,
		Retries: 3,
	})

	d, err := dispatch.New(conn, proto, reg, dispatch.Config{
		Sequential:      opts.sequential,
		AllowDuplicates: opts.allowDuplicates,
		Timeout:         opts.requestTimeout,
		Retries:         3,
		Log:             log,
		Metrics:         metricsReg,
	})
	if err != nil {
		return fmt.Errorf("dgrpc-server: dispatcher: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithField("addr", conn.LocalAddr().String()).Info("dgrpc-server: listening")
	return d.Run(ctx)
}
