package handler

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sunnyapi/internal/http/middleware"
	"sunnyapi/internal/service"
)

// apiError is a client error detected by a handler before reaching a service.
type apiError struct {
	status  int
	code    string
	message string
	details map[string]string
}

func (e *apiError) Error() string { return e.code + ": " + e.message }

func badRequest(code, message string) *apiError {
	return &apiError{status: fiber.StatusBadRequest, code: code, message: message}
}

func invalidFields(details map[string]string) *apiError {
	return &apiError{status: fiber.StatusBadRequest, code: "VALIDATION_ERROR", message: "validation failed", details: details}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes the JSON body into dst and validates its struct tags. An empty body is validated as is.
func bind(c *fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return badRequest("INVALID_BODY", "malformed request body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return invalidFields(fieldErrors(verrs))
		}
		return err
	}
	return nil
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "email":
			out[field] = "invalid email address"
		case "min":
			out[field] = "must be at least " + fe.Param()
		case "max":
			out[field] = "must be at most " + fe.Param()
		case "gte":
			out[field] = "must be greater than or equal to " + fe.Param()
		case "oneof":
			out[field] = "must be one of: " + fe.Param()
		default:
			out[field] = "is invalid"
		}
	}
	return out
}

// pageFrom reads the limit and offset query parameters. Clamping happens in the services.
func pageFrom(c *fiber.Ctx) (service.Page, error) {
	var p service.Page
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, badRequest("INVALID_LIMIT", "invalid limit")
		}
		p.Limit = n
	}
	if s := c.Query("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, badRequest("INVALID_OFFSET", "invalid offset")
		}
		p.Offset = n
	}
	return p, nil
}

// pathID validates a uuid route parameter.
func pathID(c *fiber.Ctx, name string) (string, error) {
	id := c.Params(name)
	if _, err := uuid.Parse(id); err != nil {
		return "", badRequest("INVALID_ID", "invalid id format")
	}
	return id, nil
}

// queryID returns an optional uuid query parameter.
func queryID(c *fiber.Ctx, name string) (string, error) {
	id := c.Query(name)
	if id == "" {
		return "", nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", invalidFields(map[string]string{name: "must be a valid id"})
	}
	return id, nil
}

func queryFloat(c *fiber.Ctx, name string) (*float64, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalidFields(map[string]string{name: "must be a number"})
	}
	return &v, nil
}

func actor(c *fiber.Ctx) service.Actor { return middleware.ActorFrom(c) }
