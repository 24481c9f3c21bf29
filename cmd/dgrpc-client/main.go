// Command dgrpc-client is the thin CLI entry point issuing fsops calls
// through a rpc.ContextManager against the positional argument surface
// named in spec.md §6 ("Client: [listen-address] [target-address]
// [port]"). Grounded on original_source/.../rfs_client/{args,main}.rs for
// the argument shape; the TUI (ui/app.rs, ui/tui.rs, ui/widgets.rs) and
// data_collection.rs benchmarking harness are out of scope per spec.md §1.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ridgewireio/dgrpc/fsops"
	"github.com/ridgewireio/dgrpc/rpc"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultPort uint16 = 4013

func main() {
	cmd := newClientCmd()
	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("dgrpc-client: exiting")
	}
}

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dgrpc-client [listen-address] [target-address] [port]",
		Short: "Issue fsops remote calls against a dgrpc-server",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := "127.0.0.1"
			targetAddr := "127.0.0.1"
			port := defaultPort
			if len(args) > 0 {
				listenAddr = args[0]
			}
			if len(args) > 1 {
				targetAddr = args[1]
			}
			if len(args) > 2 {
				p, err := parsePort(args[2])
				if err != nil {
					return err
				}
				port = p
			}
			return run(listenAddr, targetAddr, port)
		},
	}
	return cmd
}

func parsePort(s string) (uint16, error) {
	var p uint16
	_, err := fmt.Sscanf(s, "%d", &p)
	if err != nil {
		return 0, fmt.Errorf("dgrpc-client: invalid port %q: %w", s, err)
	}
	return p, nil
}

func run(listenAddr, targetAddr string, port uint16) error {
	log := logrus.StandardLogger()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(listenAddr), Port: 0})
	if err != nil {
		return fmt.Errorf("dgrpc-client: listen: %w", err)
	}
	defer conn.Close()

	target := &net.UDPAddr{IP: net.ParseIP(targetAddr), Port: int(port)}

	ctx := context.Background()
	cm, err := rpc.NewContextManager(ctx, conn, target, transport.DefaultProto{}, time.Second, 3, log)
	if err != nil {
		return fmt.Errorf("dgrpc-client: connect: %w", err)
	}
	defer cm.Close()

	log.WithField("target", target.String()).Info("dgrpc-client: connected")

	const demoPath = "remote_file.txt"
	if err := fsops.CreateFile(ctx, cm, demoPath); err != nil {
		log.WithError(err).Debug("dgrpc-client: create_file (may already exist)")
	}
	if err := fsops.WriteBytes(ctx, cm, demoPath, []byte("hello from dgrpc-client")); err != nil {
		return fmt.Errorf("dgrpc-client: write_bytes: %w", err)
	}
	data, err := fsops.ReadBytes(ctx, cm, demoPath)
	if err != nil {
		return fmt.Errorf("dgrpc-client: read_bytes: %w", err)
	}

	fmt.Fprintf(os.Stdout, "%s\n", data)
	return nil
}
