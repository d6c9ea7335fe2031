// bilancio-worker exports synced transactions to the external Google Sheets
// ledger. It consumes sync messages from AMQP and sweeps the pending backlog
// on a timer, so a dropped message is picked up on the next sweep.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	gsheet "bilancio/internal/ledger/google"
	"bilancio/internal/log"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required, the worker's only job is ledger export")
		os.Exit(1)
	}

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledgerClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleLedgerSheet)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID, "ledger_sheet", cfg.GoogleLedgerSheet)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sqliteRepo, ledgerClient, cfg.SyncBatchSize)

	// Drain anything that accumulated while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
		// Not fatal; the periodic sweep retries.
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionSync(ctx, func(msg *amqp.TransactionSyncMessage) error {
			return syncWorker.HandleSyncMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPendingTransactions(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("bilancio-worker shutdown complete")
}
