package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/availability"
	"github.com/acme/engagement-compliance/internal/compliance"
	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/rules"
	"github.com/acme/engagement-compliance/internal/service/gate"
)

const defaultMaxSlotRange = 62 * 24 * time.Hour

// RulesService reads and updates tenant execution rules.
type RulesService interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, error)
	Update(ctx context.Context, tenantID uuid.UUID, patch rules.Patch) (*domain.ExecutionRules, error)
}

// GateService evaluates and lists compliance decisions.
type GateService interface {
	Evaluate(ctx context.Context, in gate.EvaluateInput) (*domain.Decision, error)
	ListDecisions(ctx context.Context, tenantID uuid.UUID, day time.Time, limit int, pageToken string) (*gate.ListDecisionsResult, error)
}

// SlotService generates bookable slots.
type SlotService interface {
	GenerateSlots(ctx context.Context, q availability.SlotQuery) ([]time.Time, error)
}

// HealthCheck probes one backing store.
type HealthCheck func(ctx context.Context) error

// Deps carries what the handlers need.
type Deps struct {
	Rules        RulesService
	Gate         GateService
	Slots        SlotService
	AfterHours   *compliance.AfterHours
	HealthChecks map[string]HealthCheck
	// MaxSlotRange caps end-start of a slot query; zero means 62 days.
	MaxSlotRange time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	rules        RulesService
	gate         GateService
	slots        SlotService
	afterHours   *compliance.AfterHours
	healthChecks map[string]HealthCheck
	maxSlotRange time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Deps) *HandlerSet {
	h := &HandlerSet{
		rules:        deps.Rules,
		gate:         deps.Gate,
		slots:        deps.Slots,
		afterHours:   deps.AfterHours,
		healthChecks: deps.HealthChecks,
		maxSlotRange: deps.MaxSlotRange,
		logger:       deps.Logger,
		now:          deps.Now,
	}
	if h.maxSlotRange <= 0 {
		h.maxSlotRange = defaultMaxSlotRange
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	tenants := v1.Group("/tenants/:tenantID")
	tenants.Get("/execution-rules", h.getRules)
	tenants.Put("/execution-rules", h.updateRules)

	tenants.Post("/compliance/evaluate", h.evaluate)
	tenants.Post("/compliance/after-hours", h.checkAfterHours)
	tenants.Get("/compliance/decisions", h.listDecisions)

	tenants.Get("/event-types/:eventTypeID/slots", h.listSlots)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", ctx.Method()), zap.String("path", ctx.Path()), zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{"error": message})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, check := range h.healthChecks {
		if err := check(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	status := fiber.StatusOK
	state := "ok"
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}

	return ctx.Status(status).JSON(fiber.Map{"status": state, "errors": errs})
}

func tenantParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	return uuidParam(ctx, "tenantID")
}

func uuidParam(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
