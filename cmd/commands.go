package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/alert"
	"github.com/lightlink-network/ll-opinit-bots/api"
	"github.com/lightlink-network/ll-opinit-bots/challenger"
	"github.com/lightlink-network/ll-opinit-bots/database"
	"github.com/lightlink-network/ll-opinit-bots/executor"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/outputsubmitter"
	"github.com/lightlink-network/ll-opinit-bots/rpc"
	"github.com/lightlink-network/ll-opinit-bots/wallet"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// service is the long running part of a command.
type service interface {
	Run(ctx context.Context) error
}

// setup is shared by every command.
type setup struct {
	logger  *slog.Logger
	db      *database.Database
	metrics *metrics.Metrics
}

func newSetup(c *cli.Context, name string) (*setup, error) {
	logger, err := newLogger(c.String(LogLevelFlag.Name))
	if err != nil {
		return nil, err
	}
	logger = logger.With("bot", name)

	if err := checkRequired(c, DatabaseURIFlag, BridgeIDFlag); err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(database.DatabaseOpts{
		URI:          c.String(DatabaseURIFlag.Name),
		DatabaseName: c.String(DatabaseNameFlag.Name),
		Logger:       logger.With("component", "database"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := db.CreateIndexes(c.Context); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("failed to create database indexes: %w", err)
	}

	return &setup{logger: logger, db: db, metrics: metrics.New(metrics.Namespace)}, nil
}

// run serves the API and metrics and runs svc until ctx is done or any of
// them fails. With ENABLE_API_ONLY only the API is served.
func (s *setup) run(c *cli.Context, svc func() (service, error)) error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.db.Close(ctx); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(c.Context)

	if port := c.String(APIPortFlag.Name); port != "" {
		server, err := api.NewServer(api.ServerOpts{
			Logger: s.logger.With("component", "api-server"),
			Store:  s.db,
			Port:   port,
		})
		if err != nil {
			return fmt.Errorf("failed to create api server: %w", err)
		}
		g.Go(func() error { return server.StartServer(ctx) })
	}

	if c.Bool(APIOnlyFlag.Name) {
		if c.String(APIPortFlag.Name) == "" {
			return fmt.Errorf("%s requires %s", APIOnlyFlag.Name, APIPortFlag.Name)
		}
		s.logger.Info("api only mode, monitors are not started")
		return g.Wait()
	}

	if port := c.String(MetricsPortFlag.Name); port != "" {
		g.Go(func() error {
			return s.metrics.Serve(ctx, ":"+port, s.logger.With("component", "metrics"))
		})
	}

	worker, err := svc()
	if err != nil {
		return err
	}
	g.Go(func() error { return worker.Run(ctx) })

	err = g.Wait()
	s.logger.Info("shut down", "error", err)
	return err
}

func notifier(c *cli.Context, name string, logger *slog.Logger) alert.Notifier {
	return alert.New(c.String(SlackWebHookFlag.Name), name, logger.With("component", "alert"))
}

func runExecutor(c *cli.Context) error {
	s, err := newSetup(c, "executor")
	if err != nil {
		return err
	}

	return s.run(c, func() (service, error) {
		if err := checkRequired(c, L1RPCFlag, L2RPCFlag, L1LCDFlag, L2LCDFlag, L1ChainIDFlag, L2ChainIDFlag, ExecutorSignerFlag); err != nil {
			return nil, err
		}

		l1, err := rpc.NewClient(rpc.ClientOpts{Endpoints: endpoints(c.StringSlice(L1RPCFlag.Name)), Logger: s.logger.With("component", "l1-rpc")})
		if err != nil {
			return nil, err
		}
		l2, err := rpc.NewClient(rpc.ClientOpts{Endpoints: endpoints(c.StringSlice(L2RPCFlag.Name)), Logger: s.logger.With("component", "l2-rpc")})
		if err != nil {
			return nil, err
		}
		l1LCD, err := lcd.NewClient(lcd.ClientOpts{Endpoint: c.String(L1LCDFlag.Name), Logger: s.logger.With("component", "l1-lcd")})
		if err != nil {
			return nil, err
		}
		l2LCD, err := lcd.NewClient(lcd.ClientOpts{Endpoint: c.String(L2LCDFlag.Name), Logger: s.logger.With("component", "l2-lcd")})
		if err != nil {
			return nil, err
		}

		// the executor signs L2 txs
		signer, err := wallet.NewRemote(c.Context, wallet.RemoteOpts{
			SignerURI:   c.String(ExecutorSignerFlag.Name),
			ChainID:     c.String(L2ChainIDFlag.Name),
			Broadcaster: l2LCD,
			Logger:      s.logger.With("component", "executor-wallet"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create executor wallet: %w", err)
		}

		return executor.NewExecutor(executor.ExecutorOpts{
			Config: executor.Config{
				BridgeID:            c.Uint64(BridgeIDFlag.Name),
				L1ChainID:           c.String(L1ChainIDFlag.Name),
				L1ClientID:          c.String(L1ClientIDFlag.Name),
				EnableOracle:        c.Bool(EnableOracleFlag.Name),
				SubmissionThreshold: c.Float64(SubmissionThresholdFlag.Name),
				L1StartHeight:       c.Int64(ExecutorL1HeightFlag.Name),
				L2StartHeight:       c.Int64(ExecutorL2HeightFlag.Name),
				PollInterval:        c.Duration(PollIntervalFlag.Name),
			},
			Store:    s.db,
			L1Client: l1,
			L2Client: l2,
			L1LCD:    l1LCD,
			L2LCD:    l2LCD,
			Wallet:   signer,
			Notifier: notifier(c, "executor", s.logger),
			Metrics:  s.metrics,
			Logger:   s.logger,
		})
	})
}

func runChallenger(c *cli.Context) error {
	s, err := newSetup(c, "challenger")
	if err != nil {
		return err
	}

	return s.run(c, func() (service, error) {
		if err := checkRequired(c, L1RPCFlag); err != nil {
			return nil, err
		}

		l1, err := rpc.NewClient(rpc.ClientOpts{Endpoints: endpoints(c.StringSlice(L1RPCFlag.Name)), Logger: s.logger.With("component", "l1-rpc")})
		if err != nil {
			return nil, err
		}

		return challenger.NewChallenger(challenger.ChallengerOpts{
			Config: challenger.Config{
				BridgeID:     c.Uint64(BridgeIDFlag.Name),
				StartHeight:  c.Int64(ChallengerL1HeightFlag.Name),
				PollInterval: c.Duration(PollIntervalFlag.Name),
			},
			Store:    s.db,
			L1Client: l1,
			Metrics:  s.metrics,
			Logger:   s.logger,
		})
	})
}

func runOutputSubmitter(c *cli.Context) error {
	s, err := newSetup(c, "output-submitter")
	if err != nil {
		return err
	}

	return s.run(c, func() (service, error) {
		if err := checkRequired(c, L1LCDFlag, L1ChainIDFlag, OutputSubmitterSignerFlag); err != nil {
			return nil, err
		}

		l1LCD, err := lcd.NewClient(lcd.ClientOpts{Endpoint: c.String(L1LCDFlag.Name), Logger: s.logger.With("component", "l1-lcd")})
		if err != nil {
			return nil, err
		}

		// the proposer signs L1 txs
		signer, err := wallet.NewRemote(c.Context, wallet.RemoteOpts{
			SignerURI:   c.String(OutputSubmitterSignerFlag.Name),
			ChainID:     c.String(L1ChainIDFlag.Name),
			Broadcaster: l1LCD,
			Logger:      s.logger.With("component", "proposer-wallet"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create proposer wallet: %w", err)
		}

		return outputsubmitter.NewSubmitter(outputsubmitter.SubmitterOpts{
			Config: outputsubmitter.Config{
				BridgeID: c.Uint64(BridgeIDFlag.Name),
				Interval: c.Duration(OutputIntervalFlag.Name),
			},
			Store:   s.db,
			L1:      l1LCD,
			Wallet:  signer,
			Metrics: s.metrics,
			Logger:  s.logger,
		})
	})
}
