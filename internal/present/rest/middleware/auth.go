package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
)

var tracer = otel.Tracer("auth")

// IdentifyPersona extracts the requester's persona reference from the
// request headers. Authentication itself lives in front of this service;
// here the persona header is trusted as authenticated by the edge.
func IdentifyPersona(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyPersona")
		defer span.End()

		header := c.Request().Header.Get(domain.RequesterPersonaHeader)
		if header != "" {
			ref, err := backline.ParsePersonaRef(header)
			if err == nil {
				ctx = context.WithValue(ctx, domain.RequesterPersonaCtxKey, ref)
				span.SetAttributes(attribute.String("RequesterPersona", ref.String()))
			} else {
				span.RecordError(err)
			}
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequesterPersona returns the persona attached by IdentifyPersona.
func RequesterPersona(c echo.Context) (backline.PersonaRef, bool) {
	ref, ok := c.Request().Context().Value(domain.RequesterPersonaCtxKey).(backline.PersonaRef)
	return ref, ok
}
