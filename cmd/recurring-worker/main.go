// recurring-worker materializes due recurring items into concrete monthly
// transactions and accrues provision balances.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentMaterialize)

	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	hf := cli.LoadHousehold(logger, cfg.HouseholdFile)

	// AMQP is optional; without it materialized transactions still land in
	// SQLite and the export worker's sweep picks them up.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			amqpClient = client
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - transactions will sync via bilancio-worker")
		}
	} else {
		logger.Info("AMQP disabled - transactions will not sync to the external ledger")
	}

	itemService := services.NewItemService(sqliteRepo, amqpClient)
	defer itemService.Close()

	materializer := services.NewMaterializer(sqliteRepo, itemService, hf.Household())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Materializer configured",
		"interval", cfg.MaterializeInterval,
		"sqlite_db", cfg.SQLiteDBPath,
		"member1", hf.Members[0].Name,
		"member2", hf.Members[1].Name)

	ticker := time.NewTicker(cfg.MaterializeInterval)
	defer ticker.Stop()

	logger.Info("Running initial materialization...")
	if count, err := materializer.ProcessDueItems(ctx, time.Now()); err != nil {
		logger.Error("Initial materialization failed", "error", err)
	} else {
		logger.Info("Initial materialization complete", "transactions_created", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := materializer.ProcessDueItems(ctx, now)
				if err != nil {
					logger.Error("Periodic materialization failed", "error", err)
				} else {
					logger.Info("Periodic materialization complete",
						"transactions_created", count,
						"next_check", now.Add(cfg.MaterializeInterval).Format("15:04:05"))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down recurring-worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("recurring-worker shutdown complete")
	}
}
