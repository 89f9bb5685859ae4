package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"linkpulse.local/gee"
	"linkpulse.local/internal/app/shortlink/account"
	"linkpulse.local/internal/platform/auth"
)

type CredentialsRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type UserRegisterResponse struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
	Role     string `json:"role"`
}

func NewRegisterHandler(accounts *account.Service) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req CredentialsRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		user, err := accounts.Register(ctx.Req.Context(), req.UserName, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, account.ErrUserAlreadyExists):
				ctx.AbortWithError(http.StatusConflict, err.Error())
			case errors.Is(err, account.ErrInvalidPassword), errors.Is(err, account.ErrInvalidUsername):
				ctx.AbortWithError(http.StatusBadRequest, err.Error())
			default:
				abortWithDomainError(ctx, err)
			}
			return
		}
		ctx.JSON(http.StatusCreated, UserRegisterResponse{
			ID:       user.ID,
			UserName: user.Username,
			Role:     user.Role,
		})
	}
}

func NewLoginHandler(accounts *account.Service, ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req CredentialsRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		user, err := accounts.Authenticate(ctx.Req.Context(), req.UserName, req.Password)
		if err != nil {
			if errors.Is(err, account.ErrInvalidCredentials) {
				ctx.AbortWithError(http.StatusUnauthorized, "invalid credentials")
				return
			}
			abortWithDomainError(ctx, err)
			return
		}

		token, err := ts.Sign(strconv.FormatInt(user.ID, 10), user.Role)
		if err != nil {
			slog.Error("sign token failed", "user_id", user.ID, "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "sign failed")
			return
		}
		ctx.JSON(http.StatusOK, map[string]string{"token": token})
	}
}

func NewUserMeHandler() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := mustGetIdentity(ctx)
		if !ok {
			return
		}
		ctx.JSON(http.StatusOK, map[string]any{
			"user_id": id.UserID,
			"role":    id.Role,
			"premium": id.Premium(),
		})
	}
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// NewSetRoleHandler POST /api/v1/admin/users/:username/role
//
// 角色写进 token，用户需要重新登录才生效。
func NewSetRoleHandler(accounts *account.Service) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req SetRoleRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		err := accounts.SetRole(ctx.Req.Context(), ctx.Param("username"), req.Role)
		if err != nil {
			switch {
			case errors.Is(err, account.ErrInvalidRole):
				ctx.AbortWithError(http.StatusBadRequest, err.Error())
			case errors.Is(err, account.ErrUserNotFound):
				ctx.AbortWithError(http.StatusNotFound, err.Error())
			default:
				abortWithDomainError(ctx, err)
			}
			return
		}
		ctx.Status(http.StatusNoContent)
	}
}
