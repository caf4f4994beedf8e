package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/handler/web"
	"github.com/webitel/im-notification-gateway/internal/service"
	"github.com/webitel/im-notification-gateway/internal/service/dto"
)

const maxBodyBytes = 64 << 10

type NotificationHandler struct {
	logger   *slog.Logger
	notifier service.Notifier
}

func NewNotificationHandler(logger *slog.Logger, notifier service.Notifier) *NotificationHandler {
	return &NotificationHandler{logger: logger, notifier: notifier}
}

// Send handles POST /notification. The Authorization bearer is the group's sender token.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	req := new(dto.SendNotificationRequest)
	if err := decode(w, r, req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}

	if _, err := h.notifier.Send(r.Context(), web.Bearer(r), req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.JSON(w, http.StatusOK, &dto.StatusResponse{Message: "successfully sent notification"})
}

// Log handles GET /notification/log?page=N.
func (h *NotificationHandler) Log(w http.ResponseWriter, r *http.Request) {
	var page int64
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			web.Error(w, r, h.logger, model.NewBadRequest("page must be a number", err))
			return
		}
		page = p
	}

	logs, err := h.notifier.Log(r.Context(), web.Bearer(r), page)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.JSON(w, http.StatusOK, dto.FromNotificationLog(logs))
}

func (h *NotificationHandler) SubscribeGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.SubscribeGroup(r.Context(), web.Bearer(r), chi.URLParam(r, "group")); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.JSON(w, http.StatusOK, &dto.StatusResponse{Message: "successfully subscribed"})
}

func (h *NotificationHandler) UnsubscribeGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.UnsubscribeGroup(r.Context(), web.Bearer(r), chi.URLParam(r, "group")); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.JSON(w, http.StatusOK, &dto.StatusResponse{Message: "successfully unsubscribed"})
}

func (h *NotificationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	req := new(dto.AddGroupRequest)
	if err := decode(w, r, req); err != nil {
		web.Error(w, r, h.logger, err)
		return
	}

	token, err := h.notifier.CreateGroup(r.Context(), web.Bearer(r), req)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.JSON(w, http.StatusOK, &dto.StatusResponse{
		Message: fmt.Sprintf("successfully created group: %s, group token is: %s", req.GroupName, token),
	})
}

func (h *NotificationHandler) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	err := h.notifier.RemoveGroup(r.Context(), web.Bearer(r),
		chi.URLParam(r, "group_name"),
		chi.URLParam(r, "admin_email"),
	)
	if err != nil {
		web.Error(w, r, h.logger, err)
		return
	}
	web.JSON(w, http.StatusOK, &dto.StatusResponse{Message: "successfully removed group"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.NewBadRequest("malformed JSON body", err)
	}
	return nil
}
