package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/service/ledger"
)

type CourseHandler struct {
	service *ledger.Service
}

func NewCourseHandler(service *ledger.Service) *CourseHandler {
	return &CourseHandler{service: service}
}

type sessionBody struct {
	CaseID uuid.UUID `json:"case_id" binding:"required"`
}

func (h *CourseHandler) Create(c *gin.Context) {
	var req model.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	course, err := h.service.CreateCourse(c.Request.Context(), &req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewSuccessResponse(course))
}

func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	course, err := h.service.GetCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(course))
}

// Entries returns the course's append-only usage log, oldest first.
func (h *CourseHandler) Entries(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(entries))
}

func (h *CourseHandler) Use(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var body sessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := h.service.UseSession(c.Request.Context(), id, body.CaseID, actor); err != nil {
		fail(c, err)
		return
	}

	course, err := h.service.GetCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(course))
}

func (h *CourseHandler) Return(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var body sessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := h.service.ReturnSession(c.Request.Context(), id, body.CaseID, actor); err != nil {
		fail(c, err)
		return
	}

	course, err := h.service.GetCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(course))
}

// Adjust applies a manual counter correction. Routed behind the privileged
// middleware; the service re-checks the actor.
func (h *CourseHandler) Adjust(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req model.AdjustCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := h.service.Adjust(c.Request.Context(), id, req.Delta, req.Reason, actor); err != nil {
		fail(c, err)
		return
	}

	course, err := h.service.GetCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(course))
}
