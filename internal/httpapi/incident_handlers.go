package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"alibi/internal/domain"
	"alibi/pkg/apierrors"
	"alibi/pkg/httputil"
)

func (h *handlers) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var evt domain.CameraEvent
	if err := httputil.DecodeJSON(r, &evt); err != nil {
		httputil.WriteError(w, err)
		return
	}
	inc, err := h.d.Pipeline.Ingest(r.Context(), evt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, inc)
}

// listIncidents supports the status/since/limit filters from spec §4.8.
func (h *handlers) listIncidents(w http.ResponseWriter, r *http.Request) {
	all := h.d.Incidents.ListIncidents()

	status := domain.IncidentStatus(r.URL.Query().Get("status"))
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, apierrors.New(apierrors.CodeBadInput, "since must be RFC3339"))
			return
		}
		since = parsed
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, apierrors.New(apierrors.CodeBadInput, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	out := make([]domain.Incident, 0, len(all))
	for _, inc := range all {
		if status != "" && inc.Status != status {
			continue
		}
		if !since.IsZero() && inc.UpdatedTS.Before(since) {
			continue
		}
		out = append(out, inc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type incidentWithMetadata struct {
	domain.Incident
	Metadata *domain.IncidentMetadata `json:"_metadata"`
}

// incidentUpsertPayload is the publish-side shape for a decision or
// approval that mutates an incident without re-running the pipeline;
// ingestion.Pipeline publishes the same shape for freshly ingested events.
func incidentUpsertPayload(inc domain.Incident, metadata *domain.IncidentMetadata) incidentWithMetadata {
	return incidentWithMetadata{Incident: inc, Metadata: metadata}
}

func (h *handlers) getIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inc, metadata, err := h.d.Incidents.GetIncident(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, incidentWithMetadata{Incident: inc, Metadata: metadata})
}

// decisionStatus maps an operator action onto the incident status it
// transitions to. ActionApprove is deliberately absent: it only ever
// arrives through POST /incidents/{id}/approve, which enforces the
// supervisor-only dispatch_pending_review -> dispatch_authorized edge.
var decisionStatus = map[domain.OperatorAction]domain.IncidentStatus{
	domain.ActionConfirm:  domain.StatusTriage,
	domain.ActionDismiss:  domain.StatusDismissed,
	domain.ActionEscalate: domain.StatusEscalated,
	domain.ActionClose:    domain.StatusClosed,
}

func (h *handlers) recordDecision(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrAuthFailed)
		return
	}
	id := chi.URLParam(r, "id")

	var decision domain.Decision
	if err := httputil.DecodeJSON(r, &decision); err != nil {
		httputil.WriteError(w, err)
		return
	}
	decision.IncidentID = id
	decision.OperatorUsername = claims.Username
	decision.DecisionTS = time.Now().UTC()
	if err := decision.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	nextStatus, ok := decisionStatus[decision.ActionTaken]
	if !ok {
		httputil.WriteError(w, apierrors.New(apierrors.CodeBadInput, "unsupported action_taken for this endpoint"))
		return
	}

	inc, metadata, err := h.d.Incidents.GetIncident(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.d.Incidents.AppendDecision(decision); err != nil {
		httputil.WriteError(w, err)
		return
	}

	inc.Status = nextStatus
	inc.UpdatedTS = decision.DecisionTS
	if err := h.d.Incidents.PutIncident(inc, metadata); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.d.Hub.Publish(incidentUpsertPayload(inc, metadata))
	_ = h.d.Audit.Log(r.Context(), claims.Username, "decision_"+string(decision.ActionTaken), id, string(decision.DismissReason))

	httputil.WriteJSON(w, http.StatusOK, incidentWithMetadata{Incident: inc, Metadata: metadata})
}

func (h *handlers) approveIncident(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrAuthFailed)
		return
	}
	id := chi.URLParam(r, "id")

	inc, metadata, err := h.d.Incidents.GetIncident(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if inc.Status != domain.StatusDispatchPendingReview {
		httputil.WriteError(w, apierrors.New(apierrors.CodeConflict, "incident is not awaiting dispatch approval"))
		return
	}

	inc.Status = domain.StatusDispatchAuthorized
	inc.UpdatedTS = time.Now().UTC()
	if err := h.d.Incidents.PutIncident(inc, metadata); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.d.Hub.Publish(incidentUpsertPayload(inc, metadata))
	_ = h.d.Audit.Log(r.Context(), claims.Username, "dispatch_approve", id, "")

	httputil.WriteJSON(w, http.StatusOK, incidentWithMetadata{Incident: inc, Metadata: metadata})
}
