package main

import (
	"context"
	"errors"
	"os"
	"time"

	"pesantren/internal/amqp"
	"pesantren/internal/cli"
	"pesantren/internal/log"
	gsheet "pesantren/internal/sheets/google"
	"pesantren/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting report worker")
	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore := cli.OpenStore(context.Background(), logger, cfg)
	defer closeStore()

	// The worker only reads the ledger, so it never publishes events.
	app := cli.NewApp(store, cfg, nil, logger)

	var exporter worker.ReportExporter
	if cfg.ExportEnabled() {
		sheets, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		}, logger.Logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		exporter = sheets
		logger.Info("Report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Report export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	reportWorker := worker.NewReportWorker(app.Reports, exporter, app.Monitoring, logger.Logger)

	var amqpClient *amqp.Client
	if cfg.EventsEnabled() {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		amqpClient = c
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err.Error())
			}
		}
	})

	// Catch up on anything missed while the worker was down.
	if err := reportWorker.RefreshCurrent(ctx); err != nil {
		logger.Error("Startup refresh failed", log.FieldError, err.Error())
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeLedgerEvents(ctx, reportWorker.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger event consumption failed", log.FieldError, err.Error())
			}
		}()
	} else {
		logger.Info("Ledger events disabled - refreshing on the ticker only")
	}

	reportWorker.Run(ctx, cfg.ReportRefreshInterval)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped")
}
