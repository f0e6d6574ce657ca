package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
)

var errNoPermsToSetRoles = "not enough rights to set these roles"

type (
	authApi struct {
		svc *user.Service
	}

	userApi struct {
		svc *user.Service
	}
)

func registerAuthAPI(g *echo.Group, svc *user.Service) {
	api := authApi{svc: svc}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, requireAuth)
	ag.GET("/me", api.me, requireAuth)
}

func registerUserAPI(g *echo.Group, svc *user.Service) {
	api := userApi{svc: svc}

	ug := g.Group("/users", requireAdmin)
	ug.POST("", api.create)
	ug.GET("", api.query)
	ug.GET("/roles", api.queryRoles)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr, IsAdmin: usr.IsAdmin()})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *authApi) me(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: p.User, IsAdmin: p.IsAdmin})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	c := ctx.Request().Context()
	if err := data.Validate(c, api.svc); err != nil {
		return err
	}

	// the caller cannot grant a role above their own
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(p.User.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	usr, err := api.svc.Create(c, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string    `json:"token"`
		User    user.User `json:"user"`
		IsAdmin bool      `json:"is_admin"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		User    user.User `json:"user"`
		IsAdmin bool      `json:"is_admin"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}
