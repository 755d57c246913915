// Package server is the HTTP gateway: it accepts document-analysis tasks,
// persists the uploaded file, enqueues the task, and answers status queries
// from the consume-once outcome store.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"docpipe/gatewayd/baseserver"
	"docpipe/internals/assert"
	"docpipe/internals/conf"
	"docpipe/internals/outcome"
	"docpipe/internals/taskq"
	"docpipe/sdk"
)

type Server struct {
	Base       *baseserver.BaseServer
	queue      taskq.Backend
	outcomes   outcome.Store
	inputDir   string
	httpServer *http.Server
}

func New() *Server {
	base := baseserver.New()

	dataDir := filepath.Clean(base.Config.Server.DataDir)
	base.Config.Server.DataDir = dataDir

	inputDir := filepath.Join(dataDir, "input_pdfs")
	err := os.MkdirAll(inputDir, 0o755)
	assert.AssertNil(err, "[gateway] Failed to create input directory: ")

	queuePath := filepath.Join(dataDir, "queue", "tasks.db")
	err = os.MkdirAll(filepath.Dir(queuePath), 0o755)
	assert.AssertNil(err, "[gateway] Failed to create queue directory: ")

	// Losing the queue is the one startup failure there is no answer to.
	queue, err := taskq.NewSQLite(taskq.SQLiteConfig{
		Path:         queuePath,
		QueueName:    base.Config.Queue.Name,
		PollInterval: time.Duration(base.Config.Queue.PollInterval) * time.Second,
		RetryDelay:   taskq.FixedDelay(time.Duration(base.Config.Queue.RetryDelay) * time.Second),
		RetryMax:     base.Config.Queue.RetryMax,
	})
	assert.AssertNil(err, "[gateway] Failed to open task queue: ")

	outcomes, err := NewOutcomeStore(base.Config)
	assert.AssertNil(err, "[gateway] Failed to open outcome store: ")

	return &Server{
		Base:     base,
		queue:    queue,
		outcomes: outcomes,
		inputDir: inputDir,
	}
}

// NewOutcomeStore builds the configured outcome backend rooted in the data
// directory.
func NewOutcomeStore(config *conf.Config) (outcome.Store, error) {
	dataDir := filepath.Clean(config.Server.DataDir)
	switch config.Outcomes.Backend {
	case conf.OutcomeBackendFile:
		return outcome.NewFileStore(filepath.Join(dataDir, "outcomes"))
	default:
		return outcome.NewSQLiteStore(filepath.Join(dataDir, "outcomes.db"))
	}
}

func (s *Server) SafeStart() error {
	if sdk.IsRunning(s.Base.Env.BASE_URL) {
		return nil
	}

	go func() {
		s.Base.Logger.Info("starting gateway")
		err := s.Start()
		if err != nil {
			log.Fatal("[docpipe] Failed to start gateway: " + err.Error())
		}
	}()

	if sdk.WaitForStart(s.Base.Env.BASE_URL, s.Base.Logger) {
		return nil
	}

	return errors.New("couldn't start gateway")
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Base.Env.LISTEN_ADDR)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler: s.Router(),
	}
	s.httpServer = server
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if s.httpServer == nil {
			s.Base.Logger.Error("shutdown failed", "error", errors.New("server not initialized"))
			return
		}
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Base.Logger.Error("shutdown failed", "error", err)
		}
		if err := s.queue.Close(); err != nil {
			s.Base.Logger.Error("queue close failed", "error", err)
		}
	}()
}
