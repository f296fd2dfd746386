package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/engagement-compliance/internal/availability"
)

type slotsResponse struct {
	EventTypeID uuid.UUID   `json:"event_type_id"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Slots       []time.Time `json:"slots"`
}

func (h *HandlerSet) listSlots(ctx *fiber.Ctx) error {
	tenantID, err := tenantParam(ctx)
	if err != nil {
		return err
	}
	eventTypeID, err := uuidParam(ctx, "eventTypeID")
	if err != nil {
		return err
	}

	start, err := parseTimeQuery(ctx, "start")
	if err != nil {
		return err
	}
	end, err := parseTimeQuery(ctx, "end")
	if err != nil {
		return err
	}
	if end.Sub(start) > h.maxSlotRange {
		return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("range exceeds %s", h.maxSlotRange))
	}

	q := availability.SlotQuery{
		TenantID:        tenantID,
		EventTypeID:     eventTypeID,
		RangeStart:      start,
		RangeEnd:        end,
		RequestTimezone: ctx.Query("timezone"),
	}
	if raw := ctx.Query("assigned_to"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid assigned_to")
		}
		q.AssignedToUserID = &userID
	}

	slots, err := h.slots.GenerateSlots(ctx.UserContext(), q)
	if err != nil {
		return translateError(err)
	}

	return ctx.JSON(slotsResponse{
		EventTypeID: eventTypeID,
		Start:       start.UTC(),
		End:         end.UTC(),
		Slots:       slots,
	})
}

func parseTimeQuery(ctx *fiber.Ctx, name string) (time.Time, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return time.Time{}, fiber.NewError(http.StatusBadRequest, name+" is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fiber.NewError(http.StatusBadRequest, "invalid "+name)
	}
	return t, nil
}
