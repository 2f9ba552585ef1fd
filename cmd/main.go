package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/ft-raid-core/internal/cobra"
	"github.com/Anthya1104/ft-raid-core/internal/config"
	"github.com/Anthya1104/ft-raid-core/internal/logger"
	"github.com/Anthya1104/ft-raid-core/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := logger.InitLogger(config.LogLevelInfo); err != nil {
		logrus.Fatalf("Error initializing Logger : %v", err)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	if err := cobra.ExecuteCmd(); err != nil {
		logrus.Fatalf("Error executing command: %v", err)
		os.Exit(1)
	}
}
