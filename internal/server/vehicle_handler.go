package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

// VehicleHandler 车辆管理接口
type VehicleHandler struct {
	vehicles *vehicle.Service
}

func NewVehicleHandler(vehicles *vehicle.Service) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles}
}

type addVehicleReq struct {
	LicensePlate       string `json:"license_plate" binding:"required"`
	Brand              string `json:"brand"`
	Model              string `json:"model"`
	Color              string `json:"color"`
	CurrentMileage     int64  `json:"current_mileage"`
	LastServiceMileage int64  `json:"last_service_mileage"`
}

func (h *VehicleHandler) Add(c *gin.Context) {
	var req addVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	v, err := h.vehicles.Add(c.Request.Context(), currentActor(c), vehicle.AddInput{
		LicensePlate:       req.LicensePlate,
		Brand:              req.Brand,
		Model:              req.Model,
		Color:              req.Color,
		CurrentMileage:     req.CurrentMileage,
		LastServiceMileage: req.LastServiceMileage,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

type updateVehicleReq struct {
	LicensePlate *string `json:"license_plate"`
	Brand        *string `json:"brand"`
	Model        *string `json:"model"`
	Color        *string `json:"color"`
}

func (h *VehicleHandler) Update(c *gin.Context) {
	var req updateVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	v, err := h.vehicles.Update(c.Request.Context(), currentActor(c), c.Param("id"), vehicle.UpdateInput{
		LicensePlate: req.LicensePlate,
		Brand:        req.Brand,
		Model:        req.Model,
		Color:        req.Color,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

type setVehicleStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *VehicleHandler) SetStatus(c *gin.Context) {
	var req setVehicleStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	v, err := h.vehicles.SetStatus(c.Request.Context(), currentActor(c), c.Param("id"), vehicle.Status(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

// Service 登记一次保养
func (h *VehicleHandler) Service(c *gin.Context) {
	v, err := h.vehicles.ServiceVehicle(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *VehicleHandler) Delete(c *gin.Context) {
	if err := h.vehicles.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *VehicleHandler) Get(c *gin.Context) {
	v, err := h.vehicles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *VehicleHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	vehicles, total, err := h.vehicles.List(c.Request.Context(), offset, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"items": vehicles, "total": total})
}

// ServiceDue 到保养里程的车辆清单
func (h *VehicleHandler) ServiceDue(c *gin.Context) {
	intervalKM, _ := strconv.ParseInt(c.Query("interval_km"), 10, 64)
	vehicles, err := h.vehicles.ListServiceDue(c.Request.Context(), intervalKM)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vehicles)
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return offset, limit
}

// parseTimeParam RFC3339时间参数
func parseTimeParam(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, apperr.Validationf("%s required (RFC3339)", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validationf("invalid %s: %v", name, err)
	}
	return t, nil
}
