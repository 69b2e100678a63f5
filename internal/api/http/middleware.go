package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/service"
	apperrors "github.com/spec-kit/queue-engine/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// long-lived streams manage their own lifetime
		if c.Get(fiber.HeaderAccept) == "text/event-stream" {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if apperrors.IsRetryable(domainErr) {
					response["error"].(fiber.Map)["retryable"] = true
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError maps service sentinels and fiber errors onto the API error shape.
func toDomainError(err error) *apperrors.DomainError {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var transitionErr *service.TransitionError
	if errors.As(err, &transitionErr) {
		details := map[string]any{
			"from": transitionErr.From,
			"to":   transitionErr.To,
		}
		if len(transitionErr.Missing) > 0 {
			details["missing"] = transitionErr.Missing
		}
		switch {
		case errors.Is(err, service.ErrMissingComment):
			return apperrors.ToDomainError(apperrors.NewMissingComment(transitionErr.Err.Error(), details))
		case errors.Is(err, service.ErrPreconditionNotAcknowledged):
			return apperrors.ToDomainError(apperrors.NewPreconditionNotAcknowledged(transitionErr.Err.Error(), details))
		default:
			return apperrors.ToDomainError(apperrors.NewInvalidTransition(transitionErr.Err.Error(), details))
		}
	}

	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, service.ErrQueueNotFound):
		return apperrors.ToDomainError(apperrors.NewNotFound("queue", nil))
	case errors.Is(err, service.ErrTicketNotFound):
		return apperrors.ToDomainError(apperrors.NewNotFound("ticket", nil))
	case errors.Is(err, service.ErrAgentNotFound):
		return apperrors.ToDomainError(apperrors.NewNotFound("agent", nil))
	case errors.Is(err, service.ErrAlertNotFound):
		return apperrors.ToDomainError(apperrors.NewNotFound("alert", nil))
	case errors.Is(err, service.ErrAgentNotInQueue):
		return apperrors.ToDomainError(apperrors.NewValidationError(err.Error(), nil))
	case errors.Is(err, service.ErrStaleWrite):
		return apperrors.ToDomainError(apperrors.NewStaleWrite("resource changed concurrently; re-fetch and retry", nil))
	case errors.Is(err, service.ErrFetchFailure):
		return apperrors.ToDomainError(apperrors.NewFetchFailure(service.FetchFailureMessage, err))
	case errors.Is(err, service.ErrInvalidInterval):
		return apperrors.ToDomainError(apperrors.NewInvalidInterval(err.Error(), nil))
	case errors.Is(err, service.ErrQueueNotWatched):
		return apperrors.ToDomainError(apperrors.NewConflict(err.Error(), nil))
	case errors.Is(err, service.ErrForbidden):
		return apperrors.ToDomainError(apperrors.NewForbidden("not allowed to act for this agent"))
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.ToDomainError(apperrors.NewUnauthorized("invalid credentials"))
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewDomainError("TIMEOUT", "request timed out", fiber.StatusGatewayTimeout, nil)
	case errors.As(err, &fiberErr):
		return apperrors.NewDomainError(fiberCode(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	}
	return "HTTP_ERROR"
}
