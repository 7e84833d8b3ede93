package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/asterworks/go-aster/pkg/control"
	"github.com/asterworks/go-aster/pkg/driver"
	"github.com/asterworks/go-aster/pkg/telemetry"
)

// statusResponse summarizes the driver session.
type statusResponse struct {
	Connected   bool             `json:"connected"`
	Robot       string           `json:"robot"`
	Stiffness   float64          `json:"stiffness"`
	Controllers []string         `json:"controllers"`
	Stats       driver.TickStats `json:"stats"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(statusResponse{
		Connected:   s.driver.IsConnected(),
		Robot:       s.driver.RobotModel(),
		Stiffness:   s.driver.Stiffness(),
		Controllers: s.driver.Controllers(),
		Stats:       s.driver.Stats(),
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.driver.Stats())
}

func (s *Server) handleJoints(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"joints": s.driver.Joints()})
}

func (s *Server) handleJointState(c *fiber.Ctx) error {
	js, ok := s.telemetry.LastJointState()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no joint state published yet",
		})
	}
	return c.JSON(js)
}

func (s *Server) handleStiffness(c *fiber.Ctx) error {
	st, ok := s.telemetry.LastStiffness()
	if !ok {
		// Before the first tick the driver's stored value is still
		// authoritative.
		st = telemetry.Stiffness{Value: s.driver.Stiffness()}
	}
	return c.JSON(st)
}

// setStiffnessRequest is the POST /api/stiffness body.
type setStiffnessRequest struct {
	Value float64 `json:"value"`
}

func (s *Server) handleSetStiffness(c *fiber.Ctx) error {
	var req setStiffnessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Value < 0.0 || req.Value > 1.0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "stiffness must be within [0, 1]",
		})
	}
	if err := s.driver.SetStiffness(req.Value); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"stiffness": req.Value})
}

func (s *Server) handleDiagnostics(c *fiber.Ctx) error {
	report, ok := s.telemetry.LastReport()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no diagnostics published yet",
		})
	}
	return c.JSON(report)
}

func (s *Server) handleControllers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"controllers": s.driver.Controllers()})
}

func (s *Server) handleAddController(c *fiber.Ctx) error {
	var cfg control.PIDConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if cfg.Joint == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "joint is required"})
	}
	pid := control.NewPID(cfg)
	if err := s.driver.AddController(pid); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("controller added via api", "name", pid.Name())
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"controller": pid.Name()})
}

// handleCmdVel walks the base. The call blocks through the driver's settle
// pause, so the response confirms the move was issued, not just queued.
func (s *Server) handleCmdVel(c *fiber.Ctx) error {
	var tw telemetry.Twist
	if err := c.BodyParser(&tw); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.driver.CommandVelocity(tw); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"moved": true})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.driver.Stop()
	s.logger.Info("stop requested via api")
	return c.JSON(fiber.Map{"connected": s.driver.IsConnected()})
}
