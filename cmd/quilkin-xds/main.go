// Copyright Project Contour Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command quilkin-xds runs the dynamic configuration control plane: a gRPC
// aggregated discovery server and an HTTP admin endpoint, both reading from
// a single in-process configuration store.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quilkin-go/quilkin/internal/admin"
	"github.com/quilkin-go/quilkin/internal/config"
	"github.com/quilkin-go/quilkin/internal/httpsvc"
	"github.com/quilkin-go/quilkin/internal/workgroup"
	"github.com/quilkin-go/quilkin/internal/xds"
)

type options struct {
	id        string
	xdsAddr   string
	xdsPort   int
	adminAddr string
	adminPort int
	proxyMode bool
	logLevel  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "quilkin-xds",
		Short: "Run Quilkin's dynamic configuration control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.id, "id", "quilkin-xds", "control plane identifier, surfaced in discovery responses")
	flags.StringVar(&opts.xdsAddr, "xds-address", "", "address the xDS gRPC server binds to")
	flags.IntVar(&opts.xdsPort, "xds-port", 7800, "port the xDS gRPC server binds to")
	flags.StringVar(&opts.adminAddr, "admin-address", "", "address the admin HTTP server binds to")
	flags.IntVar(&opts.adminPort, "admin-port", 8000, "port the admin HTTP server binds to")
	flags.BoolVar(&opts.proxyMode, "proxy-mode", false, "report admin readiness the way a data-plane proxy would, instead of a bare control plane")
	flags.StringVar(&opts.logLevel, "log-level", "info", "logrus level: trace, debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	cfg := config.New()
	cfg.ID().Store(opts.id)

	registry := prometheus.NewRegistry()
	metrics := xds.NewMetrics(registry)

	discoveryServer := xds.NewServer(log.WithField("context", "xds"), cfg, metrics)
	grpcServer := xds.RegisterServer(discoveryServer, registry)

	mode := admin.ModeXds
	if opts.proxyMode {
		mode = admin.ModeProxy
	}
	adminSvc := &httpsvc.Service{
		Addr:        opts.adminAddr,
		Port:        opts.adminPort,
		FieldLogger: log.WithField("context", "admin"),
	}
	admin.Register(adminSvc, mode, cfg, admin.NewHealth(), registry)

	var group workgroup.Group
	group.Add(func(stop <-chan struct{}) error {
		addr := net.JoinHostPort(opts.xdsAddr, fmt.Sprintf("%d", opts.xdsPort))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}

		go func() {
			<-stop
			// Discovery streams are long-lived; GracefulStop would wait for
			// them to drain on their own, which they won't do promptly.
			grpcServer.Stop()
		}()

		log.WithField("address", addr).Info("started xDS server")
		defer log.Info("stopped xDS server")
		return grpcServer.Serve(l)
	})

	group.AddContext(func(ctx context.Context) {
		if err := adminSvc.Start(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("admin server exited with error")
		}
	})

	// SIGTERM/SIGINT triggers the same graceful shutdown as any other
	// member of the group returning: the first to return closes stop for
	// the rest.
	group.Add(func(stop <-chan struct{}) error {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-c:
			log.WithField("signal", sig).Info("received shutdown signal")
		case <-stop:
		}
		return nil
	})

	return group.Run()
}
