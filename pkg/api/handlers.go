package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/robot-server/pkg/config"
	customlog "github.com/open-teleop/robot-server/pkg/log"
	"github.com/open-teleop/robot-server/pkg/teleop"
)

// Robot is the read-only view of the control loop the HTTP API exposes.
type Robot interface {
	Status() teleop.Status
	Observations() map[string]interface{}
	SubscribeActions(buf int) (<-chan []float64, func())
}

// Register sets up all HTTP and WebSocket routes on the app.
func Register(app *fiber.App, robot Robot, cfg *config.Config, logger customlog.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := app.Group("/api")
	api.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(robot.Status())
	})
	api.Get("/observations", func(c *fiber.Ctx) error {
		obs := robot.Observations()
		if obs == nil {
			obs = map[string]interface{}{}
		}
		return c.JSON(obs)
	})
	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(cfg)
	})

	// Upgrade guard for the action stream endpoint.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/actions", websocket.New(func(conn *websocket.Conn) {
		ActionStreamHandler(conn, robot, logger)
	}))
}

// ActionStreamHandler mirrors every synthesized action to a WebSocket
// client. Observers subscribe to the action feed; they are never called
// inline by the control loop, and a slow client only misses frames.
func ActionStreamHandler(conn *websocket.Conn, robot Robot, logger customlog.Logger) {
	logger.Infof("Action stream connected: %s", conn.RemoteAddr())
	actions, cancel := robot.SubscribeActions(8)
	defer cancel()

	// Reader goroutine: its only job is to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			logger.Infof("Action stream disconnected: %s", conn.RemoteAddr())
			return
		case action, ok := <-actions:
			if !ok {
				return
			}
			msg := fiber.Map{"action": action}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Infof("Action stream closed: %v", err)
				return
			}
		}
	}
}
