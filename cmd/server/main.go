package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/robot-server/pkg/api"
	"github.com/open-teleop/robot-server/pkg/config"
	customlog "github.com/open-teleop/robot-server/pkg/log"
	"github.com/open-teleop/robot-server/pkg/recording"
	"github.com/open-teleop/robot-server/pkg/sim"
	"github.com/open-teleop/robot-server/pkg/teleop"
	"github.com/open-teleop/robot-server/pkg/zeromq"
)

// plantMaxJointSpeed is the slew rate of the built-in kinematic plant, rad/s.
const plantMaxJointSpeed = 2.0

func main() {
	configPath := flag.String("config", "config/server_config.yaml", "path to server config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// The built-in kinematic plant stands in for the external simulator.
	topo, err := teleop.NewTopology(cfg.Robot.Topology, cfg.Robot.SingleArmDim)
	if err != nil {
		logger.Fatalf("Invalid topology: %v", err)
	}
	plant := sim.NewPlant(topo.ActionDim(), cfg.Robot.TickRateHz, plantMaxJointSpeed, nil)

	opts := teleop.Options{Env: plant}

	if cfg.Recording.Enabled {
		rec, err := recording.NewEpisodeRecorder(cfg.Recording.Path, logger)
		if err != nil {
			logger.Fatalf("Failed to create episode recorder: %v", err)
		}
		opts.Recorder = rec
		logger.Infof("Recording episode %s to %s", rec.EpisodeID(), cfg.Recording.Path)
	}

	// Transport errors (bind failures) are fatal at startup, not retried.
	zmqSvc, err := zeromq.NewService(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create ZeroMQ service: %v", err)
	}
	opts.Publisher = zmqSvc

	server, err := teleop.NewServer(cfg, logger, opts)
	if err != nil {
		logger.Fatalf("Failed to create teleop server: %v", err)
	}

	zeromq.RegisterRobotHandlers(zmqSvc, server, logger)
	if err := zmqSvc.Start(); err != nil {
		logger.Fatalf("Failed to start ZeroMQ service: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Teleop Robot Server",
		ErrorHandler: customErrorHandler,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	api.Register(app, server, cfg, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Infof("HTTP API listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Errorf("HTTP server stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- server.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Infof("Shutdown signal received")
		cancel()
		<-loopErr
	case err := <-loopErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Control loop failed: %v", err)
		}
	}

	// Two-phase shutdown: stop and join the transport first, then finalize
	// recording and tear down the actuation interface.
	zmqSvc.Stop()
	if err := server.Shutdown(); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("HTTP server forced to shutdown: %v", err)
	}

	logger.Infof("Server exited properly")
}

// customErrorHandler returns JSON errors for the HTTP API.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
