package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/udovin/duel/internal/config"
	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/managers"
	"github.com/udovin/duel/internal/pkg/logs"
)

// View represents API view.
type View struct {
	core        *core.Core
	sessions    *managers.SessionManager
	submissions *managers.SubmissionManager
	tournaments *managers.TournamentManager
	leaderboard *managers.LeaderboardManager
	stream      *eventStream
}

// Register registers handlers in specified group.
func (v *View) Register(g *echo.Group) {
	g.Use(wrapResponse)
	g.GET("/ping", v.ping)
	g.GET("/health", v.health)
	v.registerSessionHandlers(g)
	v.registerSubmissionHandlers(g)
	v.registerTournamentHandlers(g)
	v.registerLeaderboardHandlers(g)
	v.registerEventHandlers(g)
}

// ping returns pong.
func (v *View) ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// health returns current healthiness status.
func (v *View) health(c echo.Context) error {
	if err := v.core.DB.Ping(); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, "unhealthy")
	}
	return c.String(http.StatusOK, "healthy")
}

// NewView returns a new instance of view.
func NewView(core *core.Core) *View {
	sessions := managers.NewSessionManager(core)
	v := View{
		core:        core,
		sessions:    sessions,
		submissions: managers.NewSubmissionManager(core, sessions),
		tournaments: managers.NewTournamentManager(core, sessions),
		leaderboard: managers.NewLeaderboardManager(core),
		stream:      newEventStream(core.Logger()),
	}
	core.Events.AddSink(v.stream)
	return &v
}

const (
	participantKey    = "participant"
	participantHeader = "X-Participant-ID"
)

type errorField struct {
	Message string `json:"message"`
}

type errorFields map[string]errorField

type errorResponse struct {
	// Code.
	Code int `json:"-"`
	// ErrorCode contains stable machine readable code.
	ErrorCode string `json:"code,omitempty"`
	// Message.
	Message string `json:"message"`
	// InvalidFields.
	InvalidFields errorFields `json:"invalid_fields,omitempty"`
}

// StatusCode returns response status code.
func (r errorResponse) StatusCode() int {
	return r.Code
}

// Error returns response error message.
func (r errorResponse) Error() string {
	var result strings.Builder
	result.WriteString(r.Message)
	if len(r.InvalidFields) > 0 {
		result.WriteString(" (invalid fields: ")
		i := 0
		for field := range r.InvalidFields {
			if i > 0 {
				result.WriteString(", ")
			}
			result.WriteString(field)
			i++
		}
		result.WriteRune(')')
	}
	return result.String()
}

type statusCodeResponse interface {
	StatusCode() int
}

func wrapResponse(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		logger := c.Logger().(*logs.Logger).With(logs.Any("req_id", reqID))
		c.SetLogger(logger)
		c.Response().Header().Add(echo.HeaderXRequestID, reqID)
		c.Response().Header().Add("X-Duel-Version", config.Version)
		start := time.Now()
		err := wrapManagerError(next(c))
		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
		}
		defer func() {
			finish := time.Now()
			message := fmt.Sprintf("%s %s", c.Request().Method, c.Request().RequestURI)
			params := map[string]string{}
			for _, name := range c.ParamNames() {
				params[name] = c.Param(name)
			}
			args := []any{
				message,
				logs.Any("status", status),
				logs.Any("method", c.Request().Method),
				logs.Any("path", c.Path()),
				logs.Any("params", params),
				logs.Any("remote_ip", c.RealIP()),
				logs.Any("latency", finish.Sub(start)),
				err,
			}
			switch {
			case status >= 500:
				logger.Error(args...)
			case status >= 400:
				logger.Warn(args...)
			default:
				logger.Info(args...)
			}
		}()
		if resp, ok := err.(statusCodeResponse); ok {
			status = resp.StatusCode()
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return c.JSON(status, resp)
		}
		return err
	}
}

// managerErrorStatus maps kind of domain error to HTTP status.
func managerErrorStatus(kind managers.ErrorKind) int {
	switch kind {
	case managers.ValidationError:
		return http.StatusBadRequest
	case managers.PermissionError:
		return http.StatusForbidden
	case managers.StateConflictError, managers.CapacityError:
		return http.StatusConflict
	case managers.ExternalServiceError:
		return http.StatusBadGateway
	case managers.NotFoundError:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// wrapManagerError converts domain errors into error responses.
func wrapManagerError(err error) error {
	e, ok := managers.GetError(err)
	if !ok {
		return err
	}
	resp := errorResponse{
		Code:      managerErrorStatus(e.Kind),
		ErrorCode: string(e.Code),
		Message:   e.Message,
	}
	if len(e.Fields) > 0 {
		resp.InvalidFields = errorFields{}
		for name, message := range e.Fields {
			resp.InvalidFields[name] = errorField{Message: message}
		}
	}
	return resp
}

type authMethod func(c echo.Context) (bool, error)

func (v *View) extractAuth(authMethods ...authMethod) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, method := range authMethods {
				ok, err := method(c)
				if err != nil {
					return err
				}
				if ok {
					return next(c)
				}
			}
			return errorResponse{
				Code:    http.StatusUnauthorized,
				Message: "Unable to authorize.",
			}
		}
	}
}

// participantAuth extracts participant resolved by upstream gateway.
func (v *View) participantAuth(c echo.Context) (bool, error) {
	header := c.Request().Header.Get(participantHeader)
	if header == "" {
		return false, nil
	}
	id, err := strconv.ParseInt(header, 10, 64)
	if err != nil || id <= 0 {
		return false, errorResponse{
			Code:    http.StatusUnauthorized,
			Message: "Invalid participant ID.",
		}
	}
	c.Set(participantKey, id)
	return true, nil
}

func getParticipantID(c echo.Context) (int64, error) {
	id, ok := c.Get(participantKey).(int64)
	if !ok {
		c.Logger().Error("participant not extracted")
		return 0, fmt.Errorf("participant not extracted")
	}
	return id, nil
}

func getContext(c echo.Context) context.Context {
	return c.Request().Context()
}

type listFilter struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (f *listFilter) Parse(c echo.Context) error {
	if err := c.Bind(f); err != nil {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid filter.",
		}
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	f.Limit = min(f.Limit, maxListLimit)
	f.Offset = max(f.Offset, 0)
	return nil
}

func bindForm(c echo.Context, form any) error {
	if err := c.Bind(form); err != nil {
		c.Logger().Warn(err)
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid form.",
		}
	}
	return nil
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorResponse{
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("Invalid %s ID.", name),
		}
	}
	return id, nil
}
