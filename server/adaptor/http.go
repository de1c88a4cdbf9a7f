package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/usecase"
)

const maxBodyBytes = 1 << 20

type deviceInfoResponse struct {
	UserAgent string `json:"user_agent"`
	IP        string `json:"ip"`
}

type participantResponse struct {
	ID             int64              `json:"id"`
	SessionID      string             `json:"session_id"`
	Name           string             `json:"name"`
	PresentationID int64              `json:"presentation_id"`
	UserID         *int64             `json:"user_id"`
	CurrentSlide   *int               `json:"current_slide"`
	IsActive       bool               `json:"is_active"`
	LastActivity   time.Time          `json:"last_activity"`
	DeviceInfo     deviceInfoResponse `json:"device_info"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func toParticipantResponse(p domain.Participant) participantResponse {
	return participantResponse{
		ID:             p.ID,
		SessionID:      p.SessionID,
		Name:           p.Name,
		PresentationID: p.PresentationID,
		UserID:         p.UserID,
		CurrentSlide:   p.CurrentSlide,
		IsActive:       p.IsActive,
		LastActivity:   p.LastActivity,
		DeviceInfo:     deviceInfoResponse{UserAgent: p.DeviceInfo.UserAgent, IP: p.DeviceInfo.IP},
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type analyticResponse struct {
	ID             int64           `json:"id"`
	EventType      string          `json:"event_type"`
	SlideID        *int64          `json:"slide_id"`
	Data           json.RawMessage `json:"data,omitempty"`
	SessionID      string          `json:"session_id"`
	PresentationID int64           `json:"presentation_id"`
	ParticipantID  *int64          `json:"participant_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

type slideViewResponse struct {
	SlideID *int64 `json:"slide_id"`
	Views   int64  `json:"views"`
}

type hourlyActivityResponse struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

type summaryResponse struct {
	ViewCount          int64                    `json:"viewCount"`
	SlideViews         []slideViewResponse      `json:"slideViews"`
	ActiveParticipants []hourlyActivityResponse `json:"activeParticipants"`
}

type registerRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
}

type presenterRequest struct {
	Password string `json:"password"`
}

type updateSlideRequest struct {
	SessionID       string `json:"session_id"`
	SlideNumber     *int   `json:"slide_number"`
	PresentationUID string `json:"presentation_uid"`
	IsPresenter     bool   `json:"is_presenter"`
}

type disconnectRequest struct {
	SessionID string `json:"session_id"`
}

type trackRequest struct {
	SessionID       string          `json:"session_id"`
	PresentationUID string          `json:"presentation_uid"`
	EventType       string          `json:"event_type"`
	SlideID         *int64          `json:"slide_id"`
	Data            json.RawMessage `json:"data"`
}

type channelAuthRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

// Handler returns the HTTP surface wrapped in the middleware chain.
func (a *Adaptor) Handler() http.Handler {
	router := httprouter.New()
	router.POST("/p/:uid/register", a.register)
	router.POST("/p/:uid/presenter", a.presenter)
	router.GET("/p/:uid/state", a.slideState)
	router.POST("/participant/update-slide", a.updateSlide)
	router.POST("/participant/disconnect", a.disconnect)
	router.GET("/presentations/:id/participants", a.participants)
	router.GET("/presentations/:id/analytics", a.analytics)
	router.GET("/presentations/:id/analytics/summary", a.analyticsSummary)
	router.POST("/analytics/track", a.track)
	router.POST("/broadcasting/auth", a.channelAuth)
	router.GET("/ws", a.serveWS)
	router.GET("/healthz", a.health)

	return Chain(router,
		RequestMetadataMiddleware(),
		NewRequestLogger(a.logger),
		NewAuthMiddleware(a.logger, a.tokens),
	)
}

func (a *Adaptor) register(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = sessionFromCookie(r)
	}

	reqMeta := metadataFrom(r.Context())
	participant, err := a.uc.Presence.Register(r.Context(), usecase.RegisterInput{
		PresentationUID: ps.ByName("uid"),
		SessionID:       req.SessionID,
		DisplayName:     req.Name,
		Identity:        reqMeta.Identity,
		Device:          reqMeta.Device(),
	})
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    participant.SessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"participant": toParticipantResponse(participant),
		"sessionId":   participant.SessionID,
	})
}

func (a *Adaptor) presenter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req presenterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}

	reqMeta := metadataFrom(r.Context())
	presentation, err := a.uc.Reconciler.AuthorizePresenter(r.Context(), ps.ByName("uid"), req.Password, reqMeta.Identity)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	token, err := a.tokens.IssuePresenter(presentation.UID, reqMeta.PresenterToken)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     presenterCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.tokens.PresenterTTL() / time.Second),
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"token":           token,
		"presentation_id": presentation.ID,
	})
}

func (a *Adaptor) slideState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	index, known, err := a.uc.Broadcaster.CurrentSlide(r.Context(), ps.ByName("uid"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	var slideIndex *int
	if known {
		slideIndex = &index
	}
	writeJSON(w, http.StatusOK, map[string]any{"slideIndex": slideIndex})
}

func (a *Adaptor) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stats := a.hub.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"channels":             a.hub.ActiveChannels(),
		"active_subscriptions": stats.ActiveSubscriptions,
		"total_messages":       stats.TotalMessages,
		"dropped_deliveries":   stats.DroppedDeliveries,
		"uptime":               stats.Uptime,
	})
}

func (a *Adaptor) updateSlide(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req updateSlideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	if req.SlideNumber == nil {
		writeError(w, a.logger, fmt.Errorf("slide_number is required: %w", domain.ErrInvalidRequest))
		return
	}
	if req.SessionID == "" && !req.IsPresenter {
		req.SessionID = sessionFromCookie(r)
	}

	outcome, err := a.uc.Reconciler.Reconcile(r.Context(), usecase.ReportRequest{
		SessionID:       req.SessionID,
		PresentationUID: req.PresentationUID,
		SlideIndex:      *req.SlideNumber,
		IsPresenter:     req.IsPresenter,
	}, metadataFrom(r.Context()).PresenterContext())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "outcome": outcome.String()})
}

func (a *Adaptor) disconnect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req disconnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = sessionFromCookie(r)
	}
	if err := a.uc.Presence.Disconnect(r.Context(), req.SessionID); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *Adaptor) participants(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := presentationID(ps)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	participants, err := a.uc.Presence.ListActiveForPresenter(r.Context(), id, metadataFrom(r.Context()).PresenterContext())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	resp := make([]participantResponse, len(participants))
	for i, p := range participants {
		resp[i] = toParticipantResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": resp})
}

func (a *Adaptor) analytics(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := presentationID(ps)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 1 {
			writeError(w, a.logger, fmt.Errorf("page must be a positive integer: %w", domain.ErrInvalidRequest))
			return
		}
	}

	events, err := a.uc.Analytics.List(r.Context(), id, page, metadataFrom(r.Context()).PresenterContext())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	resp := make([]analyticResponse, len(events))
	for i, e := range events {
		resp[i] = analyticResponse{
			ID:             e.ID,
			EventType:      e.EventType,
			SlideID:        e.SlideID,
			Data:           e.Data,
			SessionID:      e.SessionID,
			PresentationID: e.PresentationID,
			ParticipantID:  e.ParticipantID,
			CreatedAt:      e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":     resp,
		"page":     page,
		"per_page": usecase.AnalyticsPageSize,
	})
}

func (a *Adaptor) analyticsSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := presentationID(ps)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	summary, err := a.uc.Analytics.Summary(r.Context(), id, metadataFrom(r.Context()).PresenterContext())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	resp := summaryResponse{
		ViewCount:          summary.ViewCount,
		SlideViews:         make([]slideViewResponse, len(summary.SlideViews)),
		ActiveParticipants: make([]hourlyActivityResponse, len(summary.ActiveParticipants)),
	}
	for i, v := range summary.SlideViews {
		resp.SlideViews[i] = slideViewResponse{SlideID: v.SlideID, Views: v.Views}
	}
	for i, h := range summary.ActiveParticipants {
		resp.ActiveParticipants[i] = hourlyActivityResponse{Hour: h.Hour.Format("2006-01-02 15:00:00"), Count: h.Count}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *Adaptor) track(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req trackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = sessionFromCookie(r)
	}
	err := a.uc.Analytics.Record(domain.AnalyticEvent{
		EventType:       req.EventType,
		SlideID:         req.SlideID,
		Data:            req.Data,
		SessionID:       req.SessionID,
		PresentationUID: req.PresentationUID,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrSinkClosed) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": http.StatusText(http.StatusServiceUnavailable)})
			return
		}
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// channelAuth answers Pusher-style subscription auth. Denials carry no
// reason.
func (a *Adaptor) channelAuth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req channelAuthRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, a.logger, err)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req.SocketID = r.FormValue("socket_id")
		req.ChannelName = r.FormValue("channel_name")
	}
	if req.SocketID == "" || req.ChannelName == "" {
		writeError(w, a.logger, fmt.Errorf("socket_id and channel_name are required: %w", domain.ErrInvalidRequest))
		return
	}

	if !a.uc.Authorizer.Authorize(r.Context(), metadataFrom(r.Context()).Identity, req.ChannelName) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"auth": ChannelSignature(a.opts.ChannelKey, a.opts.ChannelSecret, req.SocketID, req.ChannelName),
	})
}

func presentationID(ps httprouter.Params) (int64, error) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("presentation id must be a positive integer: %w", domain.ErrInvalidRequest)
	}
	return id, nil
}

func sessionFromCookie(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// decodeBody accepts an empty body as an empty request.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed body: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPublishFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	message := http.StatusText(status)
	switch {
	case status == http.StatusInternalServerError:
		logger.Error("Request failed", slog.Any("error", err))
	case status == http.StatusBadGateway:
		logger.Warn("Broadcast failed", slog.Any("error", err))
	case isClientError(err) && status != http.StatusForbidden:
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
