package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hospmaint/os-manager/internal/config"
	"github.com/hospmaint/os-manager/internal/model"
	"github.com/hospmaint/os-manager/internal/perm"
	"github.com/hospmaint/os-manager/internal/repository"
	"github.com/hospmaint/os-manager/internal/utils"
)

// UserHandler implements account management. The router guards every
// route with MANAGE_USERS, which only the admin role carries.
type UserHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users}
}

func validRole(role string) bool {
	switch perm.Role(role) {
	case perm.RoleAdmin, perm.RoleReception, perm.RoleTech:
		return true
	}
	return false
}

// List handles GET /api/users.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, users)
}

type createUserReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create handles POST /api/users.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}
	if !validRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	u := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         req.Role,
		Active:       true,
	}
	if err := h.Users.Create(c.Request().Context(), u); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

type updateUserReq struct {
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
	Active   *bool   `json:"active"`
}

// Update handles PATCH /api/users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Role != nil && !validRole(*req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	d := repository.UserDelta{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		Active:   req.Active,
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
		}
		d.PasswordHash = &hash
	}
	if err := h.Users.Update(c.Request().Context(), id, d); err != nil {
		return writeServiceError(c, err)
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Deactivate handles DELETE /api/users/:id. Accounts are never
// removed; the active flag is flipped so historic orders and comments
// stay attributable.
func (h *UserHandler) Deactivate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if self, ok := c.Get("user_id").(uint64); ok && self == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot deactivate own account"})
	}
	off := false
	if err := h.Users.Update(c.Request().Context(), id, repository.UserDelta{Active: &off}); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
