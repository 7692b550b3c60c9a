package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/midfield-app/clover/pkg/context"
)

// HeaderSource is the header key naming the ratings source a batch came from
const HeaderSource = "X-Ratings-Source"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			source := req.Header.Get(HeaderSource)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			if source != "" {
				ctx = context.SetSource(ctx, source)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
