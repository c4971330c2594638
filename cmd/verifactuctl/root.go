package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/cloudmetrics"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/logger"
	"github.com/smallbiznis/ancloraflow/internal/observability/metrics"
	"github.com/smallbiznis/ancloraflow/internal/providers/pdf"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/authority"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/repository"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/service"
	"github.com/smallbiznis/ancloraflow/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobName = "verifactuctl"

	// Distinct from the HTTP service so log IDs never collide.
	cliNodeID = 2
)

var version = "0.1.0"

// app holds the dependencies one command invocation needs.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	conn     *gorm.DB
	registry *prometheus.Registry
	svc      domain.Service
	out      io.Writer
}

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	cmd := &cobra.Command{
		Use:   "verifactuctl",
		Short: "Operate the Verifactu registration engine from the command line",
		Long: `verifactuctl registers invoices with the verification authority,
audits a user's invoice hash chain and inspects the registration log.

Database settings are read from the same DATABASE_* environment variables
(or .env file) as the HTTP service.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(opts, cmd.OutOrStdout())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newVerifyChainCmd(a),
		newRegisterCmd(a),
		newRegisterPendingCmd(a),
		newCancelCmd(a),
		newLogsCmd(a),
		newReceiptCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

func (a *app) init(opts *rootOptions, out io.Writer) error {
	log, err := logger.New(opts.logLevel)
	if err != nil {
		return err
	}
	a.log = log
	a.out = out
	a.cfg = config.Load()

	conn, err := db.FromConfig(a.cfg, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.conn = conn

	settings, err := config.NewVerifactuConfigHolder(log)
	if err != nil {
		return fmt.Errorf("load verifactu settings: %w", err)
	}

	node, err := snowflake.NewNode(cliNodeID)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	clk := clock.NewSystemClock()
	a.svc = service.NewService(service.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  repository.Provide(),
		Authorities: authority.NewSelector(authority.Params{
			Log:      log,
			Clock:    clk,
			Settings: settings,
		}),
		Clock:    clk,
		Settings: settings,
		Metrics: metrics.NewVerifactuMetrics(a.registry, metrics.Config{
			ServiceName: jobName,
			Environment: a.cfg.Environment,
		}),
		Receipts: pdf.New(pdf.Params{Log: log, Clock: clk}),
	})
	return nil
}

func (a *app) close() {
	if a.conn != nil {
		if sqlDB, err := a.conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// push sends the metrics collected during this run. Failures are logged only.
func (a *app) push(ctx context.Context) {
	pusher := cloudmetrics.NewPusher(a.cfg, jobName, a.log)
	if pusher == nil {
		return
	}
	if err := pusher.Push(ctx, a.registry); err != nil {
		a.log.Warn("metrics push failed", zap.Error(err))
		return
	}
	a.log.Debug("metrics pushed", zap.String("endpoint", a.cfg.PushgatewayURL))
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUUIDFlag(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("--%s must be a UUID", name)
	}
	return id, nil
}

var errChainBroken = errors.New("invoice chain is broken")
