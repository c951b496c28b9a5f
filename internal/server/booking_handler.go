package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
)

// BookingHandler 预订生命周期接口
type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(bookings *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type createBookingReq struct {
	VehicleID   string    `json:"vehicle_id" binding:"required"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Objective   string    `json:"objective"`
	Destination string    `json:"destination"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), currentActor(c), booking.CreateInput{
		VehicleID:   req.VehicleID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Objective:   req.Objective,
		Destination: req.Destination,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, b)
}

func (h *BookingHandler) Approve(c *gin.Context) { h.setStatus(c, booking.ActionApprove) }
func (h *BookingHandler) Reject(c *gin.Context)  { h.setStatus(c, booking.ActionReject) }
func (h *BookingHandler) Cancel(c *gin.Context)  { h.setStatus(c, booking.ActionCancel) }

func (h *BookingHandler) setStatus(c *gin.Context, action booking.Action) {
	b, err := h.bookings.SetStatus(c.Request.Context(), currentActor(c), c.Param("id"), action)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, b)
}

type returnBookingReq struct {
	EndMileage int64 `json:"end_mileage" binding:"required"`
}

// Return 还车登记
func (h *BookingHandler) Return(c *gin.Context) {
	var req returnBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	b, err := h.bookings.Return(c.Request.Context(), currentActor(c), c.Param("id"), req.EndMileage)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, b)
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, b)
}

func (h *BookingHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	items, total, err := h.bookings.List(c.Request.Context(), currentActor(c), booking.ListFilter{
		RequesterID: c.Query("requester_id"),
		VehicleID:   c.Query("vehicle_id"),
		Status:      booking.Status(c.Query("status")),
		Offset:      offset,
		Limit:       limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"items": items, "total": total})
}

// Available 区间内可用车辆
func (h *BookingHandler) Available(c *gin.Context) {
	start, err := parseTimeParam(c, "start")
	if err != nil {
		fail(c, err)
		return
	}
	end, err := parseTimeParam(c, "end")
	if err != nil {
		fail(c, err)
		return
	}
	vehicles, err := h.bookings.AvailableVehicles(c.Request.Context(), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vehicles)
}
