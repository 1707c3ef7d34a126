package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"StoreSales/internal/di"
	"StoreSales/pkg/config"
	applogger "StoreSales/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	job, err := di.InitializeTrainJob(cfg)
	if err != nil {
		log.Fatalf("trainer initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	report, err := job.Trainer.Run(ctx)
	stop()
	if cerr := job.Close(); cerr != nil {
		job.Logger.Warn("clickhouse close error", applogger.Error(cerr))
	}
	if err != nil {
		job.Logger.Error("training failed", applogger.Error(err))
		os.Exit(1)
	}

	job.Logger.Info("training complete",
		applogger.String("model_id", report.ModelID),
		applogger.Int("series", report.Series),
		applogger.Int("dropped", report.Dropped),
		applogger.Date("trained_last_date", report.TrainedLastDate),
		applogger.Int("evaluated", report.Evaluated),
		applogger.Float64("scaled_mse", report.ScaledMSE),
		applogger.String("artifacts", cfg.Artifacts.Dir),
	)
}
