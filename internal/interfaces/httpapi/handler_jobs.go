package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/tradeyard/dealops/internal/domain/jobscheduler"
)

func (h *Handler) GetJobHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetJobHealth")
	defer span.End()

	report, err := h.schedulerService.GetJobHealth(ctx, time.Now().UTC())
	if err != nil {
		h.logger.ErrorContext(ctx, "job health failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	jobs := make([]jobHealthDTO, 0, len(report.Jobs))
	for _, j := range report.Jobs {
		jobs = append(jobs, jobHealthToDTO(j))
	}
	executions := make([]jobExecutionDTO, 0, len(report.RecentExecutions))
	for _, e := range report.RecentExecutions {
		executions = append(executions, jobExecutionToDTO(e))
	}

	writeSuccess(ctx, w, http.StatusOK, jobHealthReportDTO{
		Jobs:             jobs,
		RecentExecutions: executions,
	})
}

func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TriggerJob")
	defer span.End()

	name := strings.TrimSpace(r.PathValue("jobName"))
	if err := h.schedulerService.TriggerJob(ctx, name); err != nil {
		h.logger.WarnContext(ctx, "manual job trigger failed", "job", name, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
}

type jobHealthReportDTO struct {
	Jobs             []jobHealthDTO    `json:"jobs"`
	RecentExecutions []jobExecutionDTO `json:"recentExecutions"`
}

type jobHealthDTO struct {
	Name            string `json:"name"`
	IntervalSeconds int64  `json:"intervalSeconds"`
	NextRunAt       string `json:"nextRunAt,omitempty"`
	LastRunAt       string `json:"lastRunAt,omitempty"`
	IsActive        bool   `json:"isActive"`
	Attempt         int    `json:"attempt"`
	LastError       string `json:"lastError,omitempty"`
	OverdueSeconds  int64  `json:"overdueSeconds"`
	BacklogRunCount int    `json:"backlogRunCount"`
}

type jobExecutionDTO struct {
	ID         string `json:"id"`
	JobName    string `json:"jobName"`
	Status     string `json:"status"`
	Attempt    int    `json:"attempt"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt"`
	Error      string `json:"error,omitempty"`
}

func jobHealthToDTO(v jobscheduler.JobHealth) jobHealthDTO {
	return jobHealthDTO{
		Name:            v.Name,
		IntervalSeconds: int64(v.Interval / time.Second),
		NextRunAt:       formatOptionalTime(v.NextRunAt),
		LastRunAt:       formatOptionalTime(v.LastRunAt),
		IsActive:        v.IsActive,
		Attempt:         v.Attempt,
		LastError:       v.LastError,
		OverdueSeconds:  int64(v.OverdueBy / time.Second),
		BacklogRunCount: v.BacklogRunCount,
	}
}

func jobExecutionToDTO(v jobscheduler.ExecutionLog) jobExecutionDTO {
	return jobExecutionDTO{
		ID:         v.ID,
		JobName:    v.JobName,
		Status:     string(v.Status),
		Attempt:    v.Attempt,
		StartedAt:  v.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: v.FinishedAt.UTC().Format(time.RFC3339),
		Error:      v.Error,
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
