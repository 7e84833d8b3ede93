// Package web serves the driver's REST and WebSocket interface: status and
// joint queries, stiffness and velocity commands, controller management, and
// live telemetry streams.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/asterworks/go-aster/internal/log"
	"github.com/asterworks/go-aster/pkg/control"
	"github.com/asterworks/go-aster/pkg/driver"
	"github.com/asterworks/go-aster/pkg/hub"
	"github.com/asterworks/go-aster/pkg/telemetry"
)

// DriverAPI is the slice of the driver the web layer exposes.
type DriverAPI interface {
	IsConnected() bool
	RobotModel() string
	Joints() []string
	Controllers() []string
	Stiffness() float64
	Stats() driver.TickStats
	SetStiffness(value float64) error
	CommandVelocity(tw telemetry.Twist) error
	AddController(c control.Controller) error
	Stop()
}

var _ DriverAPI = (*driver.Driver)(nil)

// Telemetry provides the topic hubs for WebSocket routes and the cached
// last messages for REST snapshots.
type Telemetry interface {
	JointHub() *hub.Hub
	StiffnessHub() *hub.Hub
	DiagnosticsHub() *hub.Hub
	LastJointState() (telemetry.JointState, bool)
	LastStiffness() (telemetry.Stiffness, bool)
	LastReport() (telemetry.Report, bool)
}

var _ Telemetry = (*telemetry.Publisher)(nil)

// Server is the driver's HTTP front end.
type Server struct {
	app       *fiber.App
	addr      string
	driver    DriverAPI
	telemetry Telemetry
	logger    *slog.Logger
}

// NewServer wires the routes. The velocity command route is mounted only
// when enableCmdVel is set; otherwise the endpoint does not exist.
func NewServer(addr string, d DriverAPI, tel Telemetry, enableCmdVel bool) *Server {
	s := &Server{
		addr:      addr,
		driver:    d,
		telemetry: tel,
		logger:    log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "aster driver",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/joints", s.handleJoints)
	api.Get("/joint_states", s.handleJointState)
	api.Get("/stiffness", s.handleStiffness)
	api.Post("/stiffness", s.handleSetStiffness)
	api.Get("/diagnostics", s.handleDiagnostics)
	api.Get("/controllers", s.handleControllers)
	api.Post("/controllers", s.handleAddController)
	api.Post("/stop", s.handleStop)
	if enableCmdVel {
		api.Post("/cmd_vel", s.handleCmdVel)
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/joint_states", websocket.New(s.subscribe(tel.JointHub())))
	app.Get("/ws/stiffnesses", websocket.New(s.subscribe(tel.StiffnessHub())))
	app.Get("/ws/diagnostics", websocket.New(s.subscribe(tel.DiagnosticsHub())))

	s.app = app
	return s
}

// subscribe attaches a WebSocket connection to a topic hub and blocks until
// the client disconnects.
func (s *Server) subscribe(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		s.logger.Debug("subscriber connected", "topic", h.Topic(), "client", client.ID())
		client.Run()
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
