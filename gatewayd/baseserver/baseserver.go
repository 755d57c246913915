// Package baseserver bundles the shared process dependencies (config,
// environment, logger) that both the gateway and the worker build on.
package baseserver

import (
	"log/slog"
	"os"

	"docpipe/internals/conf"
	"docpipe/internals/env"
	"docpipe/internals/logging"
)

type BaseServer struct {
	Config  *conf.Config
	Env     *env.EnvStruct
	Logger  *slog.Logger
	logFile *os.File
}

func New() *BaseServer {
	env := env.Get()
	config := conf.GetConfig()

	logger, logFile := logging.InitLogger(config)

	return &BaseServer{
		Config:  config,
		Env:     env,
		Logger:  logger,
		logFile: logFile,
	}
}

func (b *BaseServer) Close() {
	if b.logFile != nil {
		_ = b.logFile.Close()
	}
}
