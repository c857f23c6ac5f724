// FILE: internal/controller/ws_controller.go
package controller

import (
	"collab-notes-be/internal/pkg/serverutils"
	"collab-notes-be/internal/repository/memory"
	ws "collab-notes-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IWsController interface {
	RegisterRoutes(r fiber.Router)
}

// wsController upgrades authenticated clients to a live event stream.
// Browsers cannot set headers on websocket dials, so the token rides in
// the "token" query parameter instead of Authorization.
type wsController struct {
	hub       *ws.Hub
	jwtSecret string
	denylist  *memory.TokenDenylist
}

func NewWsController(hub *ws.Hub, jwtSecret string, denylist *memory.TokenDenylist) IWsController {
	return &wsController{
		hub:       hub,
		jwtSecret: jwtSecret,
		denylist:  denylist,
	}
}

func (c *wsController) RegisterRoutes(r fiber.Router) {
	r.Use("/ws", func(ctx *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(ctx) {
			return fiber.ErrUpgradeRequired
		}

		userId, _, _, err := serverutils.ResolveToken(c.jwtSecret, c.denylist, ctx.Query("token"))
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid token"))
		}
		ctx.Locals(serverutils.LocalUserId, userId.String())
		return ctx.Next()
	})

	r.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		raw, _ := conn.Locals(serverutils.LocalUserId).(string)
		userId, err := uuid.Parse(raw)
		if err != nil {
			conn.Close()
			return
		}
		ws.ServeWs(c.hub, conn, userId)
	}))
}
