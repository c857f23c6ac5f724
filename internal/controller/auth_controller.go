// FILE: internal/controller/auth_controller.go
package controller

import (
	"errors"
	"time"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/pkg/serverutils"
	"collab-notes-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	Protected(ctx *fiber.Ctx) error
}

type authController struct {
	service       service.IAuthService
	jwtMiddleware fiber.Handler
}

func NewAuthController(service service.IAuthService, jwtMiddleware fiber.Handler) IAuthController {
	return &authController{
		service:       service,
		jwtMiddleware: jwtMiddleware,
	}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	r.Post("/register", c.Register)
	r.Post("/login", c.Login)
	r.Post("/logout", c.jwtMiddleware, c.Logout)
	r.Get("/protected", c.jwtMiddleware, c.Protected)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Register(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, err.Error()))
		}
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("User registered", res))
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Login(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, err.Error()))
		}
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Login successful", res))
}

// Logout revokes the presented token. The middleware already validated
// it, so the jti and expiry are in locals.
func (c *authController) Logout(ctx *fiber.Ctx) error {
	tokenId, _ := ctx.Locals(serverutils.LocalTokenId).(string)
	expiresAt, _ := ctx.Locals(serverutils.LocalTokenExp).(time.Time)

	if err := c.service.Logout(ctx.Context(), tokenId, expiresAt); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Logged out", nil))
}

func (c *authController) Protected(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetProfile(ctx.Context(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Authenticated", res))
}

// userIdFrom recovers the authenticated user id set by the JWT
// middleware.
func userIdFrom(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := ctx.Locals(serverutils.LocalUserId).(string)
	userId, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}
	return userId, nil
}
