package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/outbox"
)

// Merge kinds.
const (
	MergeKindTag      = "tag"
	MergeKindCategory = "category"
	MergeKindCreator  = "creator"
)

// Merge statuses.
const (
	MergeCompleted = "completed"
	MergeRetrying  = "retrying"
)

// MergeResult reports how a merge ended.
type MergeResult struct {
	Kind     string `json:"kind"`
	SourceID int64  `json:"source_id"`
	TargetID int64  `json:"target_id"`
	Status   string `json:"status"`
	// JobID identifies the queued retry when Status is retrying.
	JobID string `json:"job_id,omitempty"`
	// Partial describes the steps that committed before the first attempt failed.
	Partial *domainerrors.PartialDetails `json:"partial,omitempty"`
}

// Retrier queues an operation for background retry. *outbox.Queue satisfies it.
type Retrier interface {
	Submit(name string, run outbox.Func) (*outbox.Ticket, error)
}

// TaxonomyService runs merges and hands partially applied ones to the
// retry queue. Every merge is idempotent, so a retry re-runs it whole.
type TaxonomyService struct {
	store   *collection.Store
	retrier Retrier
	logger  *slog.Logger
}

// NewTaxonomyService creates a taxonomy service. A nil retrier disables
// background retries and partial failures are returned to the caller.
func NewTaxonomyService(store *collection.Store, retrier Retrier, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{store: store, retrier: retrier, logger: logger}
}

// MergeTags folds source into target.
func (s *TaxonomyService) MergeTags(ctx context.Context, sourceID, targetID int64) (*MergeResult, error) {
	return s.merge(ctx, MergeKindTag, sourceID, targetID, s.store.MergeTag)
}

// MergeCategories folds source into target.
func (s *TaxonomyService) MergeCategories(ctx context.Context, sourceID, targetID int64) (*MergeResult, error) {
	return s.merge(ctx, MergeKindCategory, sourceID, targetID, s.store.MergeCategory)
}

// MergeCreators folds source into target.
func (s *TaxonomyService) MergeCreators(ctx context.Context, sourceID, targetID int64) (*MergeResult, error) {
	return s.merge(ctx, MergeKindCreator, sourceID, targetID, s.store.MergeCreator)
}

func (s *TaxonomyService) merge(
	ctx context.Context,
	kind string,
	sourceID, targetID int64,
	run func(ctx context.Context, sourceID, targetID int64) error,
) (*MergeResult, error) {
	res := &MergeResult{Kind: kind, SourceID: sourceID, TargetID: targetID, Status: MergeCompleted}

	err := run(ctx, sourceID, targetID)
	if err == nil {
		return res, nil
	}

	var de *domainerrors.Error
	if s.retrier == nil || !domainerrors.As(err, &de) || de.Code != domainerrors.CodePartialConsistency {
		return nil, err
	}

	ticket, submitErr := s.retrier.Submit(fmt.Sprintf("merge %s %d into %d", kind, sourceID, targetID),
		func(ctx context.Context) error { return run(ctx, sourceID, targetID) })
	if submitErr != nil {
		s.logger.Error("failed to queue merge retry", "kind", kind, "source_id", sourceID, "error", submitErr)
		return nil, err
	}

	res.Status = MergeRetrying
	res.JobID = ticket.ID
	if details, ok := de.Details.(domainerrors.PartialDetails); ok {
		res.Partial = &details
	}
	s.logger.Warn("merge partially applied, retry queued",
		"kind", kind,
		"source_id", sourceID,
		"target_id", targetID,
		"job_id", ticket.ID,
		"error", err,
	)
	return res, nil
}

// Retryable reports whether a failed merge attempt is worth repeating.
// Validation and not-found failures will not change on retry.
func Retryable(err error) bool {
	return domainerrors.Is(err, domainerrors.ErrPartialConsistency) || domainerrors.Is(err, domainerrors.ErrRemote)
}
