package httpapi

import (
	"net/http"
	"time"

	"alibi/pkg/apierrors"
	"alibi/pkg/httputil"
)

type shiftReportRequest struct {
	StartTS time.Time `json:"start_ts"`
	EndTS   time.Time `json:"end_ts"`
}

func (h *handlers) shiftReport(w http.ResponseWriter, r *http.Request) {
	var req shiftReportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !req.EndTS.After(req.StartTS) {
		httputil.WriteError(w, apierrors.New(apierrors.CodeBadInput, "end_ts must be after start_ts"))
		return
	}

	report, err := h.d.Report.Generate(r.Context(), req.StartTS, req.EndTS)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
