package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/arklim/otp-auth-service/internal/usecase"
)

const invalidPayloadMessage = "invalid request payload"

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName reports validation failures under the wire name of the field.
func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// bindJSON decodes the request body and runs its binding rules. On failure the
// response is written and false is returned. Rule violations resolve through
// cases as usecase.ErrValidation so they read like the usecase checks.
func bindJSON(c *gin.Context, dst any, cases []ErrorCase) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		detail := fmt.Errorf("%w: %s", usecase.ErrValidation, fieldErrorMessage(verrs[0]))
		RespondWithMappedError(c, detail, cases, http.StatusBadRequest, invalidPayloadMessage)
		return false
	}

	c.JSON(http.StatusBadRequest, NewErrorResponse(c, invalidPayloadMessage))
	return false
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " is malformed"
	default:
		return fe.Field() + " is invalid"
	}
}
