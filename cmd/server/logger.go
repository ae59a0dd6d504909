package main

import (
	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/config"
	"github.com/firesense/fire-alert-service/internal/logging"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
