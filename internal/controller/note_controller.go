// FILE: internal/controller/note_controller.go
package controller

import (
	"errors"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/locking"
	"collab-notes-be/internal/pkg/serverutils"
	"collab-notes-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type INoteController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	EnterEdit(ctx *fiber.Ctx) error
	SaveEdit(ctx *fiber.Ctx) error
	ExitEdit(ctx *fiber.Ctx) error
}

type noteController struct {
	noteService   service.INoteService
	jwtMiddleware fiber.Handler
}

func NewNoteController(noteService service.INoteService, jwtMiddleware fiber.Handler) INoteController {
	return &noteController{
		noteService:   noteService,
		jwtMiddleware: jwtMiddleware,
	}
}

func (c *noteController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/notes")
	h.Use(c.jwtMiddleware)
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Get("/:id", c.Show)
	h.Get("/:id/edit", c.EnterEdit)
	h.Put("/:id/edit", c.SaveEdit)
	h.Delete("/:id/edit", c.ExitEdit)
}

func (c *noteController) List(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}

	res, err := c.noteService.ListNotes(ctx.Context(), userId)
	if err != nil {
		return c.translate(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list notes", res))
}

func (c *noteController) Create(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.noteService.CreateNote(ctx.Context(), userId, &req)
	if err != nil {
		return c.translate(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create note", res))
}

func (c *noteController) Show(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}
	noteId, err := noteIdFrom(ctx)
	if err != nil {
		return err
	}

	res, err := c.noteService.ViewNote(ctx.Context(), userId, noteId)
	if err != nil {
		return c.translate(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show note", dto.NoteDetailView{Note: *res}))
}

func (c *noteController) EnterEdit(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}
	noteId, err := noteIdFrom(ctx)
	if err != nil {
		return err
	}

	res, err := c.noteService.EnterEdit(ctx.Context(), userId, noteId)
	if err != nil {
		return c.translate(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Edit session started", res))
}

func (c *noteController) SaveEdit(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}
	noteId, err := noteIdFrom(ctx)
	if err != nil {
		return err
	}

	var req dto.UpdateNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Id = noteId

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.noteService.SaveEdit(ctx.Context(), userId, &req)
	if err != nil {
		return c.translate(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success save note", dto.NoteDetailView{Note: *res}))
}

func (c *noteController) ExitEdit(ctx *fiber.Ctx) error {
	userId, err := userIdFrom(ctx)
	if err != nil {
		return err
	}
	noteId, err := noteIdFrom(ctx)
	if err != nil {
		return err
	}

	if err := c.noteService.ExitEdit(ctx.Context(), userId, noteId); err != nil {
		return c.translate(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Edit session ended", nil))
}

// translate maps domain errors onto the HTTP contract. Invisible and
// absent notes share a 404; tier failures on visible notes are 403;
// lock contention and lost sessions are 409.
func (c *noteController) translate(ctx *fiber.Ctx, err error) error {
	var conflict *dto.LockConflictError
	switch {
	case errors.Is(err, service.ErrTitleRequired):
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Title must not be blank"))
	case errors.Is(err, service.ErrNoteNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Note not found"))
	case errors.Is(err, service.ErrEditForbidden):
		return ctx.Status(fiber.StatusForbidden).JSON(serverutils.ErrorResponse(403, "Write access required"))
	case errors.Is(err, locking.ErrNotHolder):
		return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, "Edit lock not held"))
	case errors.As(err, &conflict):
		return ctx.Status(fiber.StatusConflict).JSON(serverutils.Response[*dto.LockConflictError]{
			Success: false,
			Code:    409,
			Message: "Note is being edited by another user",
			Data:    conflict,
		})
	}
	return err
}

// noteIdFrom parses the :id path segment. A malformed id cannot name
// any note, so it gets the same 404 as a missing one.
func noteIdFrom(ctx *fiber.Ctx) (uuid.UUID, error) {
	noteId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusNotFound, "Note not found")
	}
	return noteId, nil
}
