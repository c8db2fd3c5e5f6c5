package launcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/consensus-shipyard/ipc-sub004/api"
	"github.com/consensus-shipyard/ipc-sub004/flags"
	"github.com/consensus-shipyard/ipc-sub004/gateway"
	"github.com/consensus-shipyard/ipc-sub004/integration"
	"github.com/consensus-shipyard/ipc-sub004/inter/iep"
)

var app = flags.NewApp()

func init() {
	app.Action = gatewayMain
}

// Launch parses the flags and runs the gateway until it is interrupted.
func Launch(args []string) error {
	return app.Run(args)
}

func gatewayMain(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg.Node.Logging, cfg.Node.DataDir)
	if err != nil {
		return err
	}
	defer closer.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(runCtx, cfg, log); err != nil {
		log.WithError(err).Error("Gateway stopped")
		return err
	}
	return nil
}

// run assembles the node and serves it until ctx is done.
func run(ctx context.Context, cfg Config, log *logrus.Logger) error {
	nodeCfg, err := cfg.IntegrationConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	node, err := integration.MakeNode(nodeCfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.WithError(err).Error("Failed to close node")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watchEvents(gctx, node.Gateway, log)
		return nil
	})
	if cfg.HTTP.Enabled {
		handler := api.NewRouter(node.Gateway, log, reg, reg)
		g.Go(func() error {
			return serveHTTP(gctx, cfg.HTTP, handler, log)
		})
	} else {
		log.Info("HTTP API disabled")
	}
	return g.Wait()
}

func serveHTTP(ctx context.Context, cfg HTTPConfig, handler http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lis, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	log.WithField("addr", lis.Addr().String()).Info("HTTP API started")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if serveErr := <-errc; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	log.Info("HTTP API stopped")
	return err
}

// watchEvents logs gateway events until ctx is done.
func watchEvents(ctx context.Context, gw *gateway.Gateway, log logrus.FieldLogger) {
	var (
		certified = make(chan iep.CertifiedBatchPack, 16)
		executed  = make(chan gateway.BatchExecuted, 16)
		pruned    = make(chan gateway.BatchesPruned, 16)
	)
	certSub := gw.SubscribeCertified(certified)
	defer certSub.Unsubscribe()
	execSub := gw.SubscribeExecuted(executed)
	defer execSub.Unsubscribe()
	pruneSub := gw.SubscribePruned(pruned)
	defer pruneSub.Unsubscribe()

	for {
		select {
		case p := <-certified:
			log.WithFields(logrus.Fields{
				"subnet": p.Batch.SubnetID.String(),
				"height": p.Batch.BlockHeight,
				"sigs":   len(p.Signatures),
			}).Info("Batch certified")
		case e := <-executed:
			log.WithFields(logrus.Fields{
				"subnet": e.Subnet.String(),
				"height": e.Height,
				"msgs":   len(e.Msgs),
			}).Info("Batch executed")
		case p := <-pruned:
			log.WithFields(logrus.Fields{
				"subnet":    p.Subnet.String(),
				"retention": p.Retention,
				"pruned":    len(p.Heights),
			}).Info("Batches pruned")
		case <-certSub.Err():
			return
		case <-execSub.Err():
			return
		case <-pruneSub.Err():
			return
		case <-ctx.Done():
			return
		}
	}
}
