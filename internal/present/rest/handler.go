package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
	"github.com/totegamma/backline/internal/present/rest/middleware"
	"github.com/totegamma/backline/internal/present/rest/presenter"
	"github.com/totegamma/backline/internal/service"
	"github.com/totegamma/backline/internal/usecase"
)

type Handler struct {
	config       domain.Config
	entity       *usecase.EntityUsecase
	candidate    *usecase.CandidateUsecase
	notification *usecase.NotificationUsecase
	signal       *service.SignalService
}

func NewHandler(
	config domain.Config,
	entity *usecase.EntityUsecase,
	candidate *usecase.CandidateUsecase,
	notification *usecase.NotificationUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:       config,
		entity:       entity,
		candidate:    candidate,
		notification: notification,
		signal:       signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/backline", h.handleWellKnown)
	e.POST("/api/v1/entities", h.handleCreateEntity)
	e.GET("/api/v1/entities/:id", h.handleGetEntity)
	e.POST("/api/v1/entities/:id/decisions", h.handleApplyDecision)
	e.POST("/api/v1/entities/:id/resubmit", h.handleResubmit)
	e.GET("/api/v1/shows/:id/backline", h.handleListCandidates)
	e.POST("/api/v1/shows/:id/backline", h.handleApplyForBackline)
	e.POST("/api/v1/shows/:id/backline/:candidate/votes", h.handleCastVote)
	e.GET("/api/v1/notifications", h.handleListNotifications)
	e.POST("/api/v1/notifications/:id/handled", h.handleMarkHandled)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := backline.WellKnownBackline{
		Version: "1.0",
		Domain:  h.config.FQDN,
		Endpoints: map[string]backline.BacklineEndpoint{
			"net.backline.entity.create": {
				Template: "/api/v1/entities",
				Method:   "POST",
			},
			"net.backline.entity.get": {
				Template: "/api/v1/entities/{id}",
				Method:   "GET",
			},
			"net.backline.entity.decide": {
				Template: "/api/v1/entities/{id}/decisions",
				Method:   "POST",
			},
			"net.backline.entity.resubmit": {
				Template: "/api/v1/entities/{id}/resubmit",
				Method:   "POST",
			},
			"net.backline.backline.list": {
				Template: "/api/v1/shows/{id}/backline",
				Method:   "GET",
			},
			"net.backline.backline.apply": {
				Template: "/api/v1/shows/{id}/backline",
				Method:   "POST",
			},
			"net.backline.backline.vote": {
				Template: "/api/v1/shows/{id}/backline/{candidate}/votes",
				Method:   "POST",
			},
			"net.backline.notifications": {
				Template: "/api/v1/notifications",
				Method:   "GET",
				Query:    &[]string{"limit", "offset"},
			},
			"net.backline.notifications.handled": {
				Template: "/api/v1/notifications/{id}/handled",
				Method:   "POST",
			},
			"net.backline.realtime": {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

type memberRequest struct {
	Ref          string  `json:"ref"`
	BandEntityID *string `json:"bandEntityID,omitempty"`
}

type createEntityRequest struct {
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Members  []memberRequest `json:"members"`
	VenueRef *string         `json:"venueRef,omitempty"`
}

func (h *Handler) handleCreateEntity(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	var req createEntityRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	input := usecase.CreateInput{
		Type:       domain.EntityType(req.Type),
		Name:       req.Name,
		CreatorRef: actor,
	}
	for _, m := range req.Members {
		ref, err := backline.ParsePersonaRef(m.Ref)
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		input.Members = append(input.Members, usecase.MemberInput{
			Ref:          ref,
			BandEntityID: m.BandEntityID,
		})
	}
	if req.VenueRef != nil {
		ref, err := backline.ParsePersonaRef(*req.VenueRef)
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		input.VenueRef = &ref
	}

	entity, err := h.entity.Create(ctx, input)
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, entity)
}

func (h *Handler) handleGetEntity(c echo.Context) error {
	ctx := c.Request().Context()

	entity, err := h.entity.Get(ctx, c.Param("id"))
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, entity)
}

type decisionRequest struct {
	Decision        string `json:"decision"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

func (h *Handler) handleApplyDecision(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	entity, err := h.entity.ApplyDecision(
		ctx,
		c.Param("id"),
		actor,
		domain.Decision(req.Decision),
		req.ExpectedVersion,
	)
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, entity)
}

func (h *Handler) handleResubmit(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	entity, err := h.entity.Resubmit(ctx, c.Param("id"), actor)
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, entity)
}

func (h *Handler) handleListCandidates(c echo.Context) error {
	ctx := c.Request().Context()

	candidates, err := h.candidate.List(ctx, c.Param("id"))
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, candidates)
}

type applyBacklineRequest struct {
	Name     string  `json:"name"`
	EntityID *string `json:"entityID,omitempty"`
}

func (h *Handler) handleApplyForBackline(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	var req applyBacklineRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	candidate, err := h.candidate.Apply(ctx, usecase.ApplyInput{
		ShowID:       c.Param("id"),
		ApplicantRef: actor,
		Name:         req.Name,
		EntityID:     req.EntityID,
	})
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, candidate)
}

func (h *Handler) handleCastVote(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	candidate, err := h.candidate.CastVote(ctx, c.Param("id"), c.Param("candidate"), actor)
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, candidate)
}

func (h *Handler) handleListNotifications(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		limit = parsed
	}
	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid offset parameter")
		}
		offset = parsed
	}

	notifications, err := h.notification.ListForActor(ctx, actor, limit, offset)
	if err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, notifications)
}

func (h *Handler) handleMarkHandled(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.RequesterPersona(c)
	if !ok {
		return presenter.BadRequestMessage(c, "requester persona is required")
	}

	if err := h.notification.MarkHandledByActor(ctx, actor, c.Param("id")); err != nil {
		return h.presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) presentError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return presenter.Unauthorized(c, err)
	case errors.Is(err, domain.ErrConflict):
		return presenter.Conflict(c, err)
	case errors.Is(err, domain.ErrAlreadyDecided):
		return presenter.Conflict(c, err)
	case errors.Is(err, usecase.ErrVenueApproveOnly):
		return presenter.BadRequest(c, err)
	default:
		return presenter.InternalError(c, err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	input := make(chan []string)
	defer close(input)
	output := make(chan backline.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				input <- req.Topics
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Topics),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
