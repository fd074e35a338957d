package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// SharingOrchestrator composes the registry, catalog, and request lifecycle
// into the two end-to-end flows: ingesting readings into the catalog and
// resolving data-access requests against it.
type SharingOrchestrator struct {
	registry   RegistryService
	catalog    CatalogService
	lifecycle  LifecycleService
	gateway    GatewayFilter
	classifier SensitivityClassifier
	filter     ContentFilter
	ledger     ledger.Ledger
	logger     *zap.Logger
	now        func() time.Time

	// requestTTL bounds how long a created request stays fulfillable.
	requestTTL time.Duration
}

// NewSharingOrchestrator wires the orchestrator. A nil now defaults to
// time.Now.
func NewSharingOrchestrator(
	registry RegistryService,
	catalog CatalogService,
	lifecycle LifecycleService,
	gateway GatewayFilter,
	classifier SensitivityClassifier,
	filter ContentFilter,
	led ledger.Ledger,
	logger *zap.Logger,
	requestTTL time.Duration,
	now func() time.Time,
) *SharingOrchestrator {
	if now == nil {
		now = time.Now
	}
	return &SharingOrchestrator{
		registry:   registry,
		catalog:    catalog,
		lifecycle:  lifecycle,
		gateway:    gateway,
		classifier: classifier,
		filter:     filter,
		ledger:     led,
		logger:     logger,
		now:        now,
		requestTTL: requestTTL,
	}
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Total    int      `json:"total"`
	Admitted int      `json:"admitted"`
	DataIDs  []string `json:"data_ids"`
}

// IngestReadings runs a batch through the gateway filter and registers every
// admitted reading as a catalog reference. The metadata pointer is the
// content hash of the reading's ledger payload; payload storage itself lives
// behind the ledger.
func (o *SharingOrchestrator) IngestReadings(ctx context.Context, admin authority.Authority, readings []Reading) (IngestResult, error) {
	result := IngestResult{Total: len(readings)}

	for _, reading := range readings {
		admit, confidence := o.gateway.Admit(reading)
		if !admit {
			o.logger.Debug("reading filtered at gateway",
				zap.String("device_id", reading.DeviceID),
				zap.Float64("confidence", confidence),
			)
			continue
		}
		result.Admitted++

		dataID := uuid.New().String()
		entry, err := ledger.NewEntry(ledger.ChannelReferences, "payload:"+dataID, reading, o.now())
		if err != nil {
			return result, err
		}
		if err := o.ledger.Append(ctx, entry); err != nil {
			return result, fmt.Errorf("failed to store reading payload: %w", err)
		}

		sensitivity := o.classifier.Classify(ctx, reading)
		if err := o.catalog.RegisterReference(ctx, admin, dataID, reading.DataType, entry.Hash, sensitivity); err != nil {
			return result, fmt.Errorf("failed to register reference for %s: %w", reading.DeviceID, err)
		}
		result.DataIDs = append(result.DataIDs, dataID)
	}

	o.logger.Info("ingestion batch processed",
		zap.Int("total", result.Total),
		zap.Int("admitted", result.Admitted),
	)
	return result, nil
}

// HandleDataRequest records a new data-access request. Creation is
// unrestricted; the access decision happens at resolution.
func (o *SharingOrchestrator) HandleDataRequest(ctx context.Context, requester, dataType, purpose string, level models.AccessLevel) (uint64, error) {
	return o.lifecycle.CreateRequest(ctx, requester, dataType, purpose, level, o.requestTTL)
}

// ResolveRequest drives a pending request to a terminal state: requesters
// whose effective level does not satisfy the asked-for level are rejected;
// otherwise the request is approved, the shareable subset of matching
// references is assembled through the content filter, the payload is
// committed to the ledger, and the request is fulfilled with the payload's
// content hash as pointer.
func (o *SharingOrchestrator) ResolveRequest(ctx context.Context, admin authority.Authority, requestID uint64) (models.Request, error) {
	req, err := o.lifecycle.GetDetails(ctx, requestID)
	if err != nil {
		return models.Request{}, err
	}

	if !o.registry.CheckAccess(ctx, req.Requester, req.DataType, req.RequestedLevel) {
		if err := o.lifecycle.SetStatus(ctx, admin, requestID, models.StatusRejected); err != nil {
			return models.Request{}, err
		}
		o.logger.Info("request rejected: requester level insufficient",
			zap.Uint64("request_id", requestID),
			zap.String("requester", req.Requester),
		)
		return o.lifecycle.GetDetails(ctx, requestID)
	}

	if err := o.lifecycle.SetStatus(ctx, admin, requestID, models.StatusApproved); err != nil {
		return models.Request{}, err
	}

	refs := o.collectVisible(ctx, req)
	payload, err := o.filter.FilterShareable(ctx, refs, req)
	if err != nil {
		return models.Request{}, fmt.Errorf("content filter failed: %w", err)
	}

	entry, err := ledger.NewEntry(ledger.ChannelFulfillments, requestSubject(requestID), payload, o.now())
	if err != nil {
		return models.Request{}, err
	}
	if err := o.ledger.Append(ctx, entry); err != nil {
		return models.Request{}, fmt.Errorf("failed to store fulfillment payload: %w", err)
	}

	if err := o.lifecycle.Fulfill(ctx, admin, requestID, entry.Hash); err != nil {
		return models.Request{}, err
	}
	return o.lifecycle.GetDetails(ctx, requestID)
}

// collectVisible gathers the full (unredacted) views of the requested type
// that the requester is authorized to see.
func (o *SharingOrchestrator) collectVisible(ctx context.Context, req models.Request) []models.DataReference {
	var refs []models.DataReference
	for dataID := range o.catalog.ListByType(ctx, req.DataType) {
		view, err := o.catalog.GetReference(ctx, req.Requester, dataID)
		if err != nil || view.Redacted {
			continue
		}
		refs = append(refs, view.DataReference)
	}
	return refs
}
