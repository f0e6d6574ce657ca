package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
)

const (
	tokenContextKey     = "userToken"
	principalContextKey = "principal"
	principalErrKey     = "principalErr"
)

var (
	// appJWTConfig is the JWT middleware config; requests without an Authorization header pass through anonymous.
	appJWTConfig = middleware.JWTConfig{
		Skipper: func(ctx echo.Context) bool {
			return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
		},
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}

	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "invalid credentials")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")

	errAuthRequired = &accessError{status: http.StatusUnauthorized, code: "AUTH_REQUIRED", message: "authentication required"}
	errInvalidToken = &accessError{status: http.StatusUnauthorized, code: "INVALID_TOKEN", message: "invalid or expired token"}
	errUserNotFound = &accessError{status: http.StatusNotFound, code: "USER_NOT_FOUND", message: "user not found"}
	errDeactivated  = &accessError{status: http.StatusForbidden, code: "ACCOUNT_DEACTIVATED", message: "account deactivated"}
	errNotAdmin     = &accessError{
		status:  http.StatusForbidden,
		code:    "INSUFFICIENT_PRIVILEGES",
		message: "access denied, finance portal access requires admin privileges",
	}
	errNotStudent = &accessError{
		status:  http.StatusForbidden,
		code:    "ROLE_MISMATCH",
		message: "access denied, student portal is not accessible with finance credentials",
	}
)

// accessError is an authorization failure carrying a machine-readable code.
type accessError struct {
	status  int
	code    string
	message string
}

func (err *accessError) Error() string {
	return err.message
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// isInvalidToken reports whether herr was raised by the JWT middleware for a bad or expired token.
func isInvalidToken(herr *echo.HTTPError) bool {
	if _, ok := herr.Internal.(*jwt.ValidationError); ok {
		return true
	}
	return herr.Code == http.StatusUnauthorized && herr.Message == "invalid or expired jwt"
}

func getContextClaims(ctx echo.Context) (Claims, bool) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, true
		}
	}
	return Claims{}, false
}

// Principal is the caller of a request, resolved once by authMiddleware.
type Principal struct {
	User    user.User
	IsAdmin bool
}

// authMiddleware verifies the bearer token, if any, and loads its user as the request Principal.
// Resolution failures are kept on the context: only routes that require a caller answer with them.
func authMiddleware(svc *user.Service) echo.MiddlewareFunc {
	verify := middleware.JWTWithConfig(appJWTConfig)
	resolve := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, ok := getContextClaims(ctx)
			if !ok {
				return next(ctx)
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			switch {
			case err == nil && !usr.IsActive:
				ctx.Set(principalErrKey, errDeactivated)
			case err == nil:
				ctx.Set(principalContextKey, Principal{User: usr, IsAdmin: usr.IsAdmin()})
			case core.IsNotFound(err):
				ctx.Set(principalErrKey, errUserNotFound)
			default:
				return errors.Wrap(err, "resolving principal")
			}
			return next(ctx)
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(resolve(next))
	}
}

func getPrincipal(ctx echo.Context) (Principal, error) {
	if err, ok := ctx.Get(principalErrKey).(error); ok {
		return Principal{}, err
	}
	if p, ok := ctx.Get(principalContextKey).(Principal); ok {
		return p, nil
	}
	return Principal{}, errAuthRequired
}

// optionalPrincipal returns the caller of a route open to anonymous users.
func optionalPrincipal(ctx echo.Context) (Principal, bool) {
	p, ok := ctx.Get(principalContextKey).(Principal)
	return p, ok
}

func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := getPrincipal(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := getPrincipal(ctx)
		if err != nil {
			return err
		}
		if !p.IsAdmin {
			return errNotAdmin
		}
		return next(ctx)
	}
}

func requireStudent(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := getPrincipal(ctx)
		if err != nil {
			return err
		}
		if p.IsAdmin {
			return errNotStudent
		}
		return next(ctx)
	}
}

func authenticate(ctx echo.Context, uname, pwd string, svc *user.Service) (user.User, error) {
	c := ctx.Request().Context()
	usr, err := svc.GetByUsernameOrEmail(c, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errDeactivated
	}
	usr, err = svc.SetLastLogin(c, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func refreshToken(ctx echo.Context) (string, error) {
	claims, ok := getContextClaims(ctx)
	if !ok {
		return "", errAuthRequired
	}
	p, err := getPrincipal(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(GetUserClaims(p.User, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
