package identity

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the wire shape for every failed request. Code carries the
// stable text code clients can branch on; Message is human readable.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPErrorHandler translates rich errors into JSON responses. Unanticipated
// errors are logged with their detail but answered opaquely.
type HTTPErrorHandler struct {
	Logger Logger
}

// NewHTTPErrorHandler returns the boundary error handler used by the
// identity controller.
func NewHTTPErrorHandler(logger Logger) *HTTPErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &HTTPErrorHandler{Logger: logger}
}

// Handle writes the JSON error response for err.
func (h *HTTPErrorHandler) Handle(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := statusForError(richErr)

	if status >= router.StatusInternalServerError {
		h.Logger.Error(
			"request failed: %s category=%s details=%s",
			richErr.Message,
			richErr.Category,
			print.MaybePrettyJSON(richErr.Metadata),
		)
		// never leak internals to the client
		return c.JSON(status, ErrorResponse{
			Code:    TextCodeInternal,
			Message: "An unexpected server error occurred",
		})
	}

	h.Logger.Info(
		"request rejected: %s text_code=%s path=%s",
		richErr.Message,
		richErr.TextCode,
		c.OriginalURL(),
	)

	code := richErr.TextCode
	if code == "" {
		code = TextCodeInternal
	}

	return c.JSON(status, ErrorResponse{
		Code:    code,
		Message: richErr.Message,
	})
}

func statusForError(err *errors.Error) int {
	if err.Code > 0 {
		return err.Code
	}

	switch err.Category {
	case errors.CategoryAuth:
		return router.StatusUnauthorized
	case errors.CategoryAuthz:
		return router.StatusForbidden
	case errors.CategoryNotFound:
		return router.StatusNotFound
	case errors.CategoryConflict:
		return router.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return router.StatusBadRequest
	case errors.CategoryRateLimit:
		return router.StatusTooManyRequests
	default:
		return router.StatusInternalServerError
	}
}

// RequireIdentity guards a route behind a resolved identity. It expects an
// upstream resolver to have attached the identity; without one the request is
// answered 401 instead of being passed down the chain.
func RequireIdentity(contextKey string, onError router.ErrorHandler) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if _, ok := IdentityFromRequest(ctx, contextKey); ok {
				return next(ctx)
			}

			err := errors.New("authentication required", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized)

			if onError != nil {
				return onError(ctx, err)
			}

			return ctx.JSON(router.StatusUnauthorized, ErrorResponse{
				Code:    TextCodeTokenInvalid,
				Message: err.Message,
			})
		}
	}
}

// IdentityFromRequest returns the identity attached by the resolver
// middleware, checking request locals first and the request context second.
func IdentityFromRequest(ctx router.Context, contextKey string) (Identity, bool) {
	if id, ok := ctx.Locals(contextKey).(Identity); ok {
		return id, true
	}
	return IdentityFromContext(ctx.Context())
}
