package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/pkg/auth"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

// CurrentActor returns the actor placed on the request by the
// authentication middleware.
func CurrentActor(c *gin.Context) (model.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		return model.Actor{}, apperrors.Unauthorized(nil)
	}
	return actor, nil
}

// ParamUUID parses a uuid path parameter.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid "+name, err)
	}
	return id, nil
}

// BindJSON decodes the body into req and runs validate on it.
func BindJSON(c *gin.Context, req interface{}, validate func(interface{}) error) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperrors.BadRequest("invalid request body", err)
	}
	if validate != nil {
		return validate(req)
	}
	return nil
}
