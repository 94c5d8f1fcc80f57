package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/service/clinic"
)

type ClinicHandler struct {
	service *clinic.Service
}

func NewClinicHandler(service *clinic.Service) *ClinicHandler {
	return &ClinicHandler{service: service}
}

func (h *ClinicHandler) Create(c *gin.Context) {
	var req model.CreateClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.CreateClinic(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewSuccessResponse(created))
}

func (h *ClinicHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	found, err := h.service.GetClinic(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(found))
}

func (h *ClinicHandler) List(c *gin.Context) {
	clinics, err := h.service.ListClinics(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(clinics))
}
