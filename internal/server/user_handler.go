package server

import (
	"github.com/gin-gonic/gin"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/user"
)

// UserHandler 用户与登录接口
type UserHandler struct {
	users *user.Service
}

func NewUserHandler(users *user.Service) *UserHandler {
	return &UserHandler{users: users}
}

// userView 对外档案视图（不含口令散列与盐）
type userView struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Department  string   `json:"department"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Disabled    bool     `json:"disabled"`
}

func toUserView(u *user.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Department:  u.Department,
		Phone:       u.Phone,
		Email:       u.Email,
		Roles:       u.RolesSlice(),
		Disabled:    u.Disabled,
	}
}

type registerReq struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Department  string `json:"department"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Department:  req.Department,
		Phone:       req.Phone,
		Email:       req.Email,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toUserView(u))
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	res, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       toUserView(res.User),
	})
}

func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toUserView(u))
}

func (h *UserHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	users, total, err := h.users.List(c.Request.Context(), currentActor(c), offset, limit)
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, toUserView(&users[i]))
	}
	ok(c, gin.H{"items": views, "total": total})
}

type setRolesReq struct {
	Roles []string `json:"roles" binding:"required"`
}

func (h *UserHandler) SetRoles(c *gin.Context) {
	var req setRolesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	u, err := h.users.SetRoles(c.Request.Context(), currentActor(c), c.Param("id"), req.Roles)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toUserView(u))
}
