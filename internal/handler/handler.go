package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/middleware"
	"github.com/physiodesk/clinic-api/internal/model"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
)

// fail records the error for the error-handling middleware to render.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// pathUUID parses a :param path segment as a UUID, failing the request with
// a 400 when it is malformed.
func pathUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid "+param))
		c.Abort()
		return uuid.Nil, false
	}
	return id, true
}

// mustActor resolves the authenticated actor set by the auth middleware.
func mustActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		fail(c, apperrors.Unauthorized(nil))
		return model.Actor{}, false
	}
	return actor, true
}
