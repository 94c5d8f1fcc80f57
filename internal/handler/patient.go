package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/service/patient"
)

type PatientHandler struct {
	service *patient.Service
}

func NewPatientHandler(service *patient.Service) *PatientHandler {
	return &PatientHandler{service: service}
}

func (h *PatientHandler) Create(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	created, err := h.service.CreatePatient(c.Request.Context(), &req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewSuccessResponse(created))
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	found, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(found))
}

func (h *PatientHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	existing, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	existing.Name = req.Name
	existing.Email = req.Email
	existing.Phone = req.Phone
	existing.DateOfBirth = req.DateOfBirth
	existing.Gender = req.Gender
	existing.Address = req.Address

	if err := h.service.UpdatePatient(c.Request.Context(), existing, actor); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(existing))
}

func (h *PatientHandler) List(c *gin.Context) {
	filters := &model.PatientFilters{
		SearchTerm: c.Query("search"),
		Status:     c.Query("status"),
	}
	if v := c.Query("clinic_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid clinic_id"))
			return
		}
		filters.ClinicID = id
	}

	patients, err := h.service.ListPatients(c.Request.Context(), filters)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(patients))
}
