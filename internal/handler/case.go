package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/service/casestate"
)

type CaseHandler struct {
	service *casestate.Service
}

func NewCaseHandler(service *casestate.Service) *CaseHandler {
	return &CaseHandler{service: service}
}

// transitionBody is the wire form of a transition request; the target status
// is validated against the closed enum before it reaches the service.
type transitionBody struct {
	TargetStatus string                   `json:"target_status" binding:"required,case_status"`
	Reason       string                   `json:"reason" binding:"max=500"`
	Assessment   *model.AssessmentPayload `json:"assessment"`
	SOAP         *model.SOAPNote          `json:"soap"`
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req model.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	created, err := h.service.CreateCase(c.Request.Context(), &req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewSuccessResponse(created))
}

func (h *CaseHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	found, err := h.service.GetCase(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(found))
}

func (h *CaseHandler) List(c *gin.Context) {
	filters := &model.CaseFilters{}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid patient_id"))
			return
		}
		filters.PatientID = id
	}
	if v := c.Query("target_clinic_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid target_clinic_id"))
			return
		}
		filters.TargetClinicID = id
	}
	if v := c.Query("status"); v != "" {
		status, err := model.ParseCaseStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
			return
		}
		filters.Status = status
	}

	cases, err := h.service.ListCases(c.Request.Context(), filters)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(cases))
}

// Transition moves the case to the requested status. Rejections carry the
// specific reason: invalid edge, missing privilege, missing payload.
func (h *CaseHandler) Transition(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	target, err := model.ParseCaseStatus(body.TargetStatus)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	actor, ok := mustActor(c)
	if !ok {
		return
	}

	result, err := h.service.Transition(c.Request.Context(), id, actor, &casestate.TransitionRequest{
		TargetStatus: target,
		Reason:       body.Reason,
		Assessment:   body.Assessment,
		SOAP:         body.SOAP,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(result))
}

func (h *CaseHandler) History(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(entries))
}
