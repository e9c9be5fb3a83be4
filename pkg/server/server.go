/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/config"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	"github.com/wrytes/deployment-system/pkg/docker"
	"github.com/wrytes/deployment-system/pkg/events"
	"github.com/wrytes/deployment-system/pkg/handlers"
	"github.com/wrytes/deployment-system/pkg/notification"
	"github.com/wrytes/deployment-system/pkg/recovery"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	opts       *Options
	httpServer *http.Server
	store      *dbclient.Client
	driver     *docker.Driver
	bus        *events.Bus
	notifier   *notification.Manager
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

// NewServer creates and returns a new Server instance.
func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &Server{
		opts:   &Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// init performs the initial setup of the server including flag parsing,
// configuration loading, logging, the database client, the docker driver and
// the background components. It marks the server as initialized on success.
func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	if err = s.initLogs(); err != nil {
		klog.ErrorS(err, "failed to init logs")
		return err
	}
	if s.store = dbclient.NewClient(); s.store == nil {
		return fmt.Errorf("failed to init database client")
	}
	if err = s.store.Migrate(); err != nil {
		klog.ErrorS(err, "failed to migrate database schema")
		return err
	}
	if s.driver, err = docker.NewDriver(s.ctx); err != nil {
		klog.ErrorS(err, "failed to init docker driver")
		return err
	}
	s.bus = events.NewBus()
	s.notifier = notification.NewManager(s.store, notificationChannels()...)
	s.notifier.Attach(s.bus)
	s.isInited = true
	return nil
}

// Start runs boot-time deployment recovery, then serves HTTP until a signal
// arrives. Recovery completes before the surface opens so clients never see a
// half-reconciled state.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init api-server first")
		return
	}
	gin.EnableJsonDecoderDisallowUnknownFields()

	if config.IsRecoveryEnabled() {
		supervisor := recovery.NewSupervisor(s.store, s.driver, s.bus)
		if err := supervisor.Run(s.ctx); err != nil {
			klog.ErrorS(err, "deployment recovery failed")
			os.Exit(-1)
		}
	} else {
		klog.Info("deployment recovery is disabled")
	}

	s.notifier.Start()

	klog.Infof("starting api-server")
	go func() {
		if err := s.startHttpServer(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http-server")
			os.Exit(-1)
		}
	}()

	<-s.ctx.Done()
	s.Stop()
}

// Stop gracefully shuts down the HTTP server and the background components,
// then flushes logs.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	klog.Info("shutting down http server...")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "failed to shutdown httpserver")
		}
	}
	s.notifier.Stop()
	s.driver.Close()
	s.store.Close()
	s.cancel()
	klog.Info("apiserver is stopped")
	klog.Flush()
}

// initLogs initializes klog with the configured verbosity and the optional
// log file flags.
func (s *Server) initLogs() error {
	klog.InitFlags(nil)
	_ = flag.Set("log_file", s.opts.LogfilePath)
	_ = flag.Set("alsologtostderr", "true")
	_ = flag.Set("logtostderr", "false")
	_ = flag.Set("skip_log_headers", "true")
	_ = flag.Set("v", strconv.Itoa(config.GetLogLevel()))
	if s.opts.LogFileSize != 0 {
		_ = flag.Set("log_file_max_size", strconv.Itoa(s.opts.LogFileSize))
	}
	flag.Parse()
	return nil
}

// initConfig loads configuration from the optional config file. With no file
// the process runs on environment variables and defaults.
func (s *Server) initConfig() error {
	if s.opts.Config == "" {
		return config.LoadConfig("")
	}
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = config.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	return nil
}

// startHttpServer initializes the route surface and starts listening.
func (s *Server) startHttpServer() error {
	if config.GetServerPort() <= 0 {
		return fmt.Errorf("the apiserver port is not defined")
	}
	handler, err := handlers.InitHttpHandlers(s.store, s.driver, s.bus)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", config.GetServerPort())
	s.httpServer = &http.Server{Addr: addr, Handler: handler}
	klog.Infof("http-server listen port: %d", config.GetServerPort())
	return s.httpServer.ListenAndServe()
}

// notificationChannels assembles the configured delivery channels. Channels
// whose configuration is absent stay out of the set.
func notificationChannels() []notification.Channel {
	var channels []notification.Channel
	if chat := notification.NewChatChannel(); chat != nil {
		channels = append(channels, chat)
	}
	if email := notification.NewEmailChannel(); email != nil {
		channels = append(channels, email)
	}
	return channels
}
