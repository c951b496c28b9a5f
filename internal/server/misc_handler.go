package server

import (
	"github.com/gin-gonic/gin"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/notification"
	"github.com/FleetLinkBook/FleetLinkBook/internal/report"
	"github.com/FleetLinkBook/FleetLinkBook/internal/setting"
)

// NotificationHandler 站内通知接口
type NotificationHandler struct {
	notifications *notification.Service
}

func NewNotificationHandler(notifications *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	_, limit := pagination(c)
	rows, err := h.notifications.List(c.Request.Context(), currentActor(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rows)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// ReportHandler 运营报表接口
type ReportHandler struct {
	reports *report.Service
}

func NewReportHandler(reports *report.Service) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) Summary(c *gin.Context) {
	sum, err := h.reports.Summary(c.Request.Context(), currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sum)
}

// SettingHandler 系统设置接口
type SettingHandler struct {
	settings *setting.Store
}

func NewSettingHandler(settings *setting.Store) *SettingHandler {
	return &SettingHandler{settings: settings}
}

func (h *SettingHandler) List(c *gin.Context) {
	rows, err := h.settings.List(c.Request.Context(), currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rows)
}

type setSettingReq struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

func (h *SettingHandler) Set(c *gin.Context) {
	var req setSettingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	if err := h.settings.Set(c.Request.Context(), currentActor(c), req.Key, req.Value); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}
