// @title           PDF Chat API
// @version         1.0
// @description     Upload PDF documents and hold a conversation about their contents
// @termsOfService  http://swagger.io/terms/

// @contact.name    nexus-ai
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/imfeniljikadara/nexus-ai/internal/app"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/server"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

var (
	configPath string
	listenAddr string
)

func main() {
	flag.StringVar(&configPath, "config", "", "path to a yaml config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger_i.Init(config.Default().Log)
		logger_i.NewLogger("main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	logger_i.Init(cfg.Log)
	var logger = logger_i.NewLogger("main")

	serviceContext, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Starting services", "strategy", cfg.RAG.Strategy)
	application, err := app.New(serviceContext, cfg)
	if err != nil {
		logger.Error("One or more services failed to initialize. Shutting down.", "error", err)
		os.Exit(1)
	}

	handler, err := application.HTTPHandler(serviceContext)
	if err != nil {
		logger.Error("Could not start the http layer", "error", err)
		application.Close()
		os.Exit(1)
	}

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	srv := server.CreateServer(cfg.Server, handler)
	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		StopWorkers:      application.StopWorkers,
		CloseServices: func() {
			cancel()
			application.Close()
		},
	}
	go srv.ShutDownHandler(shutdownParams)
	go srv.ListenAndServe()

	<-stopExecution
	logger.Info("Server stopped")
}
