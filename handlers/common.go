package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ads-manager/ads"
	"ads-manager/models"

	"github.com/gorilla/mux"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// logRequest logs the message prefixed with the route, method, path and
// session user of the current request
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	routeName := httpserver.GetRouteName(ctx)
	method := httpserver.GetRouteMethod(ctx)
	path := httpserver.GetRoutePath(ctx)
	auth := httpserver.GetRequestAuth(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + routeName + " - " + method + " - " + path
	if auth != nil && auth.Client != "" {
		logMsg += " - user:" + auth.Client
	}
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", routeName),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

// claims returns the session claims put on the request by the auth check
func claims(ctx context.Context) map[string]interface{} {
	auth := httpserver.GetRequestAuth(ctx)
	if auth == nil {
		return nil
	}
	c, _ := auth.Claims.(map[string]interface{})
	return c
}

// currentUser returns the session user of the request or nil
func currentUser(ctx context.Context) *models.User {
	c := claims(ctx)
	id, ok := c["user_id"].(int)
	if !ok || id == 0 {
		return nil
	}
	login, _ := c["login"].(string)
	fullName, _ := c["full_name"].(string)
	return &models.User{ID: id, Login: login, FullName: fullName}
}

func sessionID(ctx context.Context) string {
	id, _ := claims(ctx)["session_id"].(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func pathID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// writeServiceError maps service errors onto HTTP responses
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *ads.ValidationError
	var persist *ads.PersistError

	switch {
	case errors.As(err, &validation):
		logRequest(ctx, "info", "Validation failed", zap.String("field", validation.Field), zap.String("reason", validation.Message))
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":                 errs.NewValidationError(validation.Message),
			"field":                 validation.Field,
			"confirmation_required": errors.Is(err, ads.ErrZeroProfitUnconfirmed),
		})
	case errors.Is(err, ads.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Ad not found"))
	case errors.Is(err, ads.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errs.NewAuthorizationError("Ad belongs to another user"))
	case errors.Is(err, ads.ErrBusy):
		writeJSON(w, http.StatusConflict, errs.NewValidationError(err.Error()))
	case errors.As(err, &persist):
		logRequest(ctx, "error", "Persistence failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError(persist.Error()))
	default:
		logRequest(ctx, "error", "Unexpected error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Server error"))
	}
}
