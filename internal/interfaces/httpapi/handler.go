package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/tradeyard/dealops/internal/domain/notification"
	"github.com/tradeyard/dealops/internal/platform/logging"
	"github.com/tradeyard/dealops/internal/usecase"
)

type Handler struct {
	schedulerService    *usecase.SchedulerService
	disputeService      *usecase.DisputeService
	notificationService *usecase.NotificationService
	logger              *logging.Logger
	validator           *validator.Validate
}

func NewHandler(
	schedulerService *usecase.SchedulerService,
	disputeService *usecase.DisputeService,
	notificationService *usecase.NotificationService,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		schedulerService:    schedulerService,
		disputeService:      disputeService,
		notificationService: notificationService,
		logger:              logger,
		validator:           validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func decodeBody(ctx context.Context, r *http.Request, target any) error {
	_, span := startSpan(ctx, "httpapi.decodeBody")
	defer span.End()

	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

// viewerFromRequest reads the identity the API gateway stamps on internal
// calls. The gateway owns authentication; this service only scopes reads.
func viewerFromRequest(r *http.Request) (*notification.Viewer, error) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		return nil, fmt.Errorf("%w: X-User-ID header is required", usecase.ErrUnauthorized)
	}
	role := strings.TrimSpace(r.Header.Get("X-User-Role"))
	return &notification.Viewer{
		UserID:  userID,
		IsAdmin: strings.EqualFold(role, "admin"),
	}, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
