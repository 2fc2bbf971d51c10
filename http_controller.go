package identity

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterIdentityRoutes mounts the authentication and account endpoints.
// The protected middleware, usually the identityware resolver, wraps every
// account route; the identity guard runs after it.
func RegisterIdentityRoutes[T any](app router.Router[T], protected router.MiddlewareFunc, opts ...IdentityControllerOption) {

	controller := NewIdentityController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")

	guard := RequireIdentity(controller.ContextKey, controller.ErrorHandler)
	secured := func(h router.HandlerFunc) router.HandlerFunc {
		h = guard(h)
		if protected != nil {
			h = protected(h)
		}
		return h
	}

	app.Get(controller.Routes.Profile, secured(controller.ProfileShow)).
		SetName("account.profile.get")
	app.Post(controller.Routes.Profile, secured(controller.ProfileUpdate)).
		SetName("account.profile.post")
	app.Post(controller.Routes.Password, secured(controller.PasswordChange)).
		SetName("account.password.post")
	app.Post(controller.Routes.Deactivate, secured(controller.Deactivate)).
		SetName("account.deactivate.post")
	app.Post(controller.Routes.Reactivate, secured(controller.Reactivate)).
		SetName("account.reactivate.post")
}

type IdentityControllerRoutes struct {
	Login      string
	Register   string
	Refresh    string
	Profile    string
	Password   string
	Deactivate string
	Reactivate string
}

type IdentityController struct {
	Debug        bool
	Logger       Logger
	Accounts     *AccountManager
	Auther       Authenticator
	ContextKey   string
	Routes       *IdentityControllerRoutes
	ErrorHandler router.ErrorHandler
}

type IdentityControllerOption func(*IdentityController) *IdentityController

func NewIdentityController(opts ...IdentityControllerOption) *IdentityController {
	c := &IdentityController{
		Logger:       defLogger{},
		ContextKey:   "identity",
		ErrorHandler: NewHTTPErrorHandler(defLogger{}).Handle,
		Routes: &IdentityControllerRoutes{
			Login:      "/auth/login",
			Register:   "/auth/register",
			Refresh:    "/auth/refresh",
			Profile:    "/accounts/me",
			Password:   "/accounts/me/password",
			Deactivate: "/accounts/me/deactivate",
			Reactivate: "/accounts/me/reactivate",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil {
		panic("Missing AccountManager in identity controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in identity controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerAccounts(accounts *AccountManager) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Accounts = accounts
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Auther = auther
		return c
	}
}

func WithControllerContextKey(key string) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func WithControllerDebug(debug bool) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Debug = debug
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *IdentityController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= IDENTITY LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	FirstName       string     `form:"first_name" json:"first_name"`
	LastName        string     `form:"last_name" json:"last_name"`
	Email           string     `form:"email" json:"email"`
	Phone           string     `form:"phone_number" json:"phone_number"`
	DateOfBirth     *time.Time `form:"date_of_birth" json:"date_of_birth"`
	Password        string     `form:"password" json:"password"`
	ConfirmPassword string     `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(3, 20)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// AccountResponse is the sanitized account shape returned by the API. The
// password hash never leaves the model but the response type makes the
// boundary explicit.
type AccountResponse struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone_number,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Enabled     bool       `json:"enabled"`
	Roles       []string   `json:"roles"`
}

func NewAccountResponse(account *Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID.String(),
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		Email:       account.Email,
		Phone:       account.Phone,
		DateOfBirth: account.DateOfBirth,
		Enabled:     account.Enabled,
		Roles:       account.RoleNames(),
	}
}

func (a *IdentityController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	msg := RegisterAccountMessage{
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		Email:           payload.Email,
		Phone:           payload.Phone,
		DateOfBirth:     payload.DateOfBirth,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	}

	account, err := a.Accounts.Register(ctx.Context(), msg)
	if err != nil {
		a.Logger.Error("register account error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= IDENTITY REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(account))
		fmt.Println("================================")
	}

	return ctx.JSON(fiber.StatusCreated, NewAccountResponse(account))
}

// RefreshRequest carries the refresh token presented for renewal.
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *IdentityController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Error("refresh error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

func (a *IdentityController) ProfileShow(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(router.StatusOK, NewAccountResponse(account))
}

// ProfileUpdatePayload is the partial profile payload. Absent and blank
// fields leave the stored value alone.
type ProfileUpdatePayload struct {
	FirstName   string     `form:"first_name" json:"first_name"`
	LastName    string     `form:"last_name" json:"last_name"`
	DateOfBirth *time.Time `form:"date_of_birth" json:"date_of_birth"`
}

// Validate will validate the payload
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
	)
}

func (a *IdentityController) ProfileUpdate(ctx router.Context) error {
	payload := new(ProfileUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	req := ProfileUpdateRequest{
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		DateOfBirth: payload.DateOfBirth,
	}

	if err := a.Accounts.UpdateProfile(ctx.Context(), account.ID, req); err != nil {
		a.Logger.Error("profile update error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	account, err = a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, NewAccountResponse(account))
}

// PasswordChangePayload carries a password rotation request.
type PasswordChangePayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordChangePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *IdentityController) PasswordChange(ctx router.Context) error {
	payload := new(PasswordChangePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Accounts.ChangePassword(ctx.Context(), account.ID, payload.CurrentPassword, payload.Password, payload.ConfirmPassword); err != nil {
		a.Logger.Error("password change error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]bool{"updated": true})
}

func (a *IdentityController) Deactivate(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Accounts.Deactivate(ctx.Context(), account.ID); err != nil {
		a.Logger.Error("deactivate error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]bool{"enabled": false})
}

func (a *IdentityController) Reactivate(ctx router.Context) error {
	account, err := a.currentAccount(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Accounts.Reactivate(ctx.Context(), account.ID); err != nil {
		a.Logger.Error("reactivate error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]bool{"enabled": true})
}

// currentAccount reloads the authenticated identity's account so handlers
// always act on live state, not on claims captured at token mint time.
func (a *IdentityController) currentAccount(ctx router.Context) (*Account, error) {
	id, ok := IdentityFromRequest(ctx, a.ContextKey)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Accounts.FindForAuthentication(ctx.Context(), id.Username())
}

func (a *IdentityController) badPayload(ctx router.Context, err error) error {
	a.Logger.Error("parse payload: %v", err)
	return ctx.JSON(fiber.StatusBadRequest, ErrorResponse{
		Code:    "INVALID_PAYLOAD",
		Message: "Error parsing body",
	})
}

func (a *IdentityController) invalidPayload(ctx router.Context, err error) error {
	a.Logger.Error("validate payload: %v", err)
	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"code":       "VALIDATION_ERROR",
		"message":    "Error validating payload",
		"validation": FormatValidationErrorToMap(err),
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors to a field to
// message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["payload"] = err.Error()
	}

	return out
}
