package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/service/bridge"
)

type AppointmentHandler struct {
	service *bridge.Service
}

func NewAppointmentHandler(service *bridge.Service) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

func (h *AppointmentHandler) Book(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	result, err := h.service.Book(c.Request.Context(), &req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewSuccessResponse(result))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(appointment))
}

func (h *AppointmentHandler) List(c *gin.Context) {
	filters := &model.AppointmentFilters{}
	if v := c.Query("clinic_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid clinic_id"))
			return
		}
		filters.ClinicID = id
	}
	if v := c.Query("clinician_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid clinician_id"))
			return
		}
		filters.ClinicianID = id
	}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid patient_id"))
			return
		}
		filters.PatientID = id
	}
	if v := c.Query("status"); v != "" {
		filters.Status = model.AppointmentStatus(v)
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid start_date"))
			return
		}
		filters.StartDate = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid end_date"))
			return
		}
		filters.EndDate = t
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(appointments))
}

// Complete finishes the appointment and reports the case status it drove
// the linked case to.
func (h *AppointmentHandler) Complete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req model.CompleteAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	caseStatus, err := h.service.Complete(c.Request.Context(), id, &req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{"case_status": caseStatus}))
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	caseStatus, err := h.service.Cancel(c.Request.Context(), id, req.Reason, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{"case_status": caseStatus}))
}

func (h *AppointmentHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, actor); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(nil))
}

// Conflicts reports overlapping scheduled or confirmed appointments for a
// clinician in a window. Advisory only.
func (h *AppointmentHandler) Conflicts(c *gin.Context) {
	clinicianID, err := uuid.Parse(c.Query("clinician_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid clinician_id"))
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid start_time"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid end_time"))
		return
	}

	var excludeID *uuid.UUID
	if v := c.Query("exclude_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid exclude_id"))
			return
		}
		excludeID = &id
	}

	conflicts, err := h.service.FindConflicts(c.Request.Context(), clinicianID, start, end, excludeID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"conflicts":     conflicts,
		"has_conflicts": len(conflicts) > 0,
	}))
}
