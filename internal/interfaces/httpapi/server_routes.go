package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerDisputeRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/disputes", handler.CreateDispute)
	mux.HandleFunc("POST /v1/disputes/{disputeID}/status", handler.TransitionDispute)
	mux.HandleFunc("POST /v1/disputes/{disputeID}/assign", handler.AssignDispute)
	mux.HandleFunc("POST /v1/disputes/{disputeID}/escrow/hold", handler.ApplyEscrowHold)
	mux.HandleFunc("POST /v1/disputes/{disputeID}/escrow/counter", handler.RecordCounterProposal)
	mux.HandleFunc("POST /v1/disputes/{disputeID}/escrow/payout", handler.SettleEscrowPayout)
	mux.HandleFunc("GET /v1/disputes/queue", handler.GetDisputeQueue)
	mux.HandleFunc("GET /v1/disputes/analytics", handler.GetDisputeAnalytics)
}

func registerNotificationRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/notifications", handler.ListNotifications)
	mux.HandleFunc("POST /v1/notifications/ack", handler.AcknowledgeNotifications)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("GET /v1/internal/jobs/health", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GetJobHealth)))
	mux.Handle("POST /v1/internal/jobs/{jobName}/trigger", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.TriggerJob)))
}
