package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/output"
	"github.com/lightlink-network/ll-opinit-bots/outputsubmitter"
	"github.com/urfave/cli/v2"
)

var (
	// chains
	L1RPCFlag = &cli.StringSliceFlag{
		Name:    "l1-rpc-uri",
		Usage:   "L1 CometBFT RPC endpoints, rotated on failure",
		EnvVars: []string{"L1_RPC_URI"},
	}
	L2RPCFlag = &cli.StringSliceFlag{
		Name:    "l2-rpc-uri",
		Usage:   "L2 CometBFT RPC endpoints, rotated on failure",
		EnvVars: []string{"L2_RPC_URI"},
	}
	L1LCDFlag = &cli.StringFlag{
		Name:    "l1-lcd-uri",
		Usage:   "L1 REST endpoint",
		EnvVars: []string{"L1_LCD_URI"},
	}
	L2LCDFlag = &cli.StringFlag{
		Name:    "l2-lcd-uri",
		Usage:   "L2 REST endpoint",
		EnvVars: []string{"L2_LCD_URI"},
	}

	// bridge
	BridgeIDFlag = &cli.Uint64Flag{
		Name:    "bridge-id",
		Usage:   "Bridge id on L1",
		EnvVars: []string{"BRIDGE_ID"},
	}
	L1ChainIDFlag = &cli.StringFlag{
		Name:    "l1-chain-id",
		Usage:   "L1 chain id registered in the L2 bridge info",
		EnvVars: []string{"L1_CHAIN_ID"},
	}
	L2ChainIDFlag = &cli.StringFlag{
		Name:    "l2-chain-id",
		Usage:   "L2 chain id the executor signs for",
		EnvVars: []string{"L2_CHAIN_ID"},
	}
	L1ClientIDFlag = &cli.StringFlag{
		Name:    "l1-client-id",
		Usage:   "IBC client id of L1 on L2, used by the oracle",
		EnvVars: []string{"L1_CLIENT_ID"},
	}
	EnableOracleFlag = &cli.BoolFlag{
		Name:    "enable-oracle",
		Usage:   "Relay L1 oracle data to L2",
		EnvVars: []string{"ENABLE_ORACLE"},
	}

	// storage
	DatabaseURIFlag = &cli.StringFlag{
		Name:    "database-uri",
		Usage:   "MongoDB connection string, must point at a replica set",
		EnvVars: []string{"DATABASE_URI"},
	}
	DatabaseNameFlag = &cli.StringFlag{
		Name:    "database-name",
		Usage:   "MongoDB database name",
		EnvVars: []string{"DATABASE_NAME"},
		Value:   "opinit",
	}

	// monitors
	ExecutorL1HeightFlag = &cli.Int64Flag{
		Name:    "executor-l1-monitor-height",
		Usage:   "L1 height the executor starts after when it has no cursor",
		EnvVars: []string{"EXECUTOR_L1_MONITOR_HEIGHT"},
	}
	ExecutorL2HeightFlag = &cli.Int64Flag{
		Name:    "executor-l2-monitor-height",
		Usage:   "L2 height the executor starts after when it has no cursor",
		EnvVars: []string{"EXECUTOR_L2_MONITOR_HEIGHT"},
	}
	ChallengerL1HeightFlag = &cli.Int64Flag{
		Name:    "challenger-l1-monitor-height",
		Usage:   "L1 height the challenger starts after when it has no cursor",
		EnvVars: []string{"CHALLENGER_L1_MONITOR_HEIGHT"},
	}
	PollIntervalFlag = &cli.DurationFlag{
		Name:    "poll-interval",
		Usage:   "Delay between monitor iterations",
		EnvVars: []string{"POLL_INTERVAL"},
		Value:   100 * time.Millisecond,
	}
	SubmissionThresholdFlag = &cli.Float64Flag{
		Name:    "submission-threshold",
		Usage:   "Fraction of the submission interval to wait before cutting the next output",
		EnvVars: []string{"SUBMISSION_THRESHOLD"},
		Value:   output.DefaultSubmissionThreshold,
	}
	OutputIntervalFlag = &cli.DurationFlag{
		Name:    "output-interval",
		Usage:   "Delay between output submission rounds",
		EnvVars: []string{"OUTPUT_INTERVAL"},
		Value:   outputsubmitter.DefaultInterval,
	}

	// signers
	ExecutorSignerFlag = &cli.StringFlag{
		Name:    "executor-signer-uri",
		Usage:   "Signer holding the executor key",
		EnvVars: []string{"EXECUTOR_SIGNER_URI"},
	}
	OutputSubmitterSignerFlag = &cli.StringFlag{
		Name:    "output-submitter-signer-uri",
		Usage:   "Signer holding the proposer key",
		EnvVars: []string{"OUTPUT_SUBMITTER_SIGNER_URI"},
	}

	// operations
	SlackWebHookFlag = &cli.StringFlag{
		Name:    "slack-web-hook",
		Usage:   "Slack webhook for operator alerts, alerts are dropped when empty",
		EnvVars: []string{"SLACK_WEB_HOOK"},
	}
	APIPortFlag = &cli.StringFlag{
		Name:    "api-port",
		Usage:   "Query API port, the API is disabled when empty",
		EnvVars: []string{"API_PORT"},
	}
	MetricsPortFlag = &cli.StringFlag{
		Name:    "metrics-port",
		Usage:   "Prometheus metrics port, metrics are not served when empty",
		EnvVars: []string{"METRICS_PORT"},
	}
	APIOnlyFlag = &cli.BoolFlag{
		Name:    "enable-api-only",
		Usage:   "Serve the query API without starting the monitors",
		EnvVars: []string{"ENABLE_API_ONLY"},
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "debug, info, warn or error",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "info",
	}
)

var globalFlags = []cli.Flag{
	DatabaseURIFlag,
	DatabaseNameFlag,
	BridgeIDFlag,
	SlackWebHookFlag,
	APIPortFlag,
	MetricsPortFlag,
	APIOnlyFlag,
	LogLevelFlag,
	PollIntervalFlag,
}

var executorFlags = []cli.Flag{
	L1RPCFlag,
	L2RPCFlag,
	L1LCDFlag,
	L2LCDFlag,
	L1ChainIDFlag,
	L2ChainIDFlag,
	L1ClientIDFlag,
	EnableOracleFlag,
	ExecutorL1HeightFlag,
	ExecutorL2HeightFlag,
	SubmissionThresholdFlag,
	ExecutorSignerFlag,
}

var challengerFlags = []cli.Flag{
	L1RPCFlag,
	ChallengerL1HeightFlag,
}

var outputSubmitterFlags = []cli.Flag{
	L1LCDFlag,
	L1ChainIDFlag,
	OutputIntervalFlag,
	OutputSubmitterSignerFlag,
}

// checkRequired fails when any of the named flags is unset.
func checkRequired(c *cli.Context, flags ...cli.Flag) error {
	var missing []string
	for _, f := range flags {
		name := f.Names()[0]
		if !c.IsSet(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return nil
}

// endpoints splits comma separated values so L1_RPC_URI="a,b" and repeated
// flags both work.
func endpoints(values []string) []string {
	var out []string
	for _, v := range values {
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
	}
	return out
}
