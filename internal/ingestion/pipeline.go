// Package ingestion wires together validation, the log store, the
// grouper, the engine, and the fan-out hub into the single pipeline spec
// §4.6 describes: validate -> store event -> group -> plan/validate/compile
// -> store incident -> publish.
package ingestion

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"alibi/internal/domain"
	"alibi/internal/engine"
	"alibi/internal/grouper"
	"alibi/internal/hub"
	"alibi/internal/platform/config"
	"alibi/internal/platform/metrics"
)

// Store is the persistence side ingestion needs: append the raw event,
// read/write incidents, and serve as the grouper's index. *logstore.Store
// satisfies this directly.
type Store interface {
	AppendEvent(domain.CameraEvent) error
	PutIncident(domain.Incident, *domain.IncidentMetadata) error
	ForCameraZone(cameraID, zoneID string) []domain.Incident
}

// Pipeline ingests camera events and turns them into stored, published
// incidents.
type Pipeline struct {
	store    Store
	hub      *hub.Hub
	settings *config.Store
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	rewriter engine.Rewriter
}

func New(store Store, h *hub.Hub, settings *config.Store, m *metrics.Metrics, tracer trace.Tracer, rewriter engine.Rewriter) *Pipeline {
	return &Pipeline{store: store, hub: h, settings: settings, metrics: m, tracer: tracer, rewriter: rewriter}
}

// Ingest runs one event through the full pipeline, returning the incident
// it ended up attached to. Validation failures are returned unwrapped so
// callers can map them straight through apierrors.FromDomain.
func (p *Pipeline) Ingest(ctx context.Context, evt domain.CameraEvent) (domain.Incident, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "ingestion.Ingest")
	defer span.End()
	defer func() {
		p.metrics.IngestionLatency.Observe(time.Since(start).Seconds())
	}()

	if err := evt.Validate(); err != nil {
		p.metrics.EventsRejected.WithLabelValues("schema_invalid").Inc()
		return domain.Incident{}, err
	}

	if err := p.store.AppendEvent(evt); err != nil {
		return domain.Incident{}, err
	}
	p.metrics.EventsIngested.WithLabelValues(evt.EventType).Inc()

	doc := p.settings.Get()
	result := grouper.Group(p.store, evt, doc.IncidentGrouping)
	if result.Created {
		p.metrics.IncidentsCreated.Inc()
	} else {
		p.metrics.IncidentsMerged.Inc()
	}

	inc := result.Incident
	inc.UpdatedTS = evt.Timestamp
	if inc.Status == "" {
		inc.Status = domain.StatusNew
	}

	plan := engine.BuildPlan(inc, doc.Thresholds)
	validation := engine.ValidatePlan(plan, inc, doc.Thresholds)
	p.metrics.ValidationOutcomes.WithLabelValues(string(validation.Status)).Inc()
	alert := engine.CompileAlert(ctx, plan, validation, p.rewriter, doc.LLM.Enabled)

	// A freshly created or still-untouched incident that requires supervisor
	// sign-off moves straight to dispatch_pending_review so POST /approve has
	// something to authorize. Once an operator has recorded a decision the
	// incident is no longer StatusNew, so a later correlated event can't pull
	// it back into the approval queue.
	if plan.RequiresHumanApproval && inc.Status == domain.StatusNew {
		inc.Status = domain.StatusDispatchPendingReview
	}

	metadata := &domain.IncidentMetadata{Plan: plan, Alert: alert, Validation: validation}
	if err := p.store.PutIncident(inc, metadata); err != nil {
		return domain.Incident{}, err
	}

	p.hub.Publish(incidentUpsertPayload(inc, metadata))
	return inc, nil
}

type incidentUpsert struct {
	domain.Incident
	Metadata *domain.IncidentMetadata `json:"_metadata"`
}

func incidentUpsertPayload(inc domain.Incident, metadata *domain.IncidentMetadata) incidentUpsert {
	return incidentUpsert{Incident: inc, Metadata: metadata}
}
