package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/domain"
)

// Outcome is how a delete request ended. None of them is an error.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeCancelled
	OutcomeDeleted
	OutcomeSoftDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not found"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeSoftDeleted:
		return "marked as deleted"
	}
	return "unknown"
}

// Confirmer asks whether a record should really be deleted
type Confirmer interface {
	Confirm(rec *domain.ImageRecord) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(rec *domain.ImageRecord) (bool, error)

func (f ConfirmFunc) Confirm(rec *domain.ImageRecord) (bool, error) {
	return f(rec)
}

// DeleteOptions tune a delete
type DeleteOptions struct {
	// Force skips confirmation
	Force bool
	// KeepRecord marks the record deleted instead of removing the row
	KeepRecord bool
}

// DeleteResult reports the outcome with the record as it was found
type DeleteResult struct {
	Outcome Outcome
	Record  *domain.ImageRecord
}

// Deleter removes images from the remote service and the local catalog
type Deleter struct {
	images  domain.ImageRepository
	creds   CredentialSource
	remote  RemoteFactory
	confirm Confirmer
	log     *zap.Logger
}

// NewDeleter creates a Deleter. confirm may be nil when every call uses Force.
func NewDeleter(images domain.ImageRepository, creds CredentialSource, remote RemoteFactory, confirm Confirmer, log *zap.Logger) *Deleter {
	return &Deleter{images: images, creds: creds, remote: remote, confirm: confirm, log: log}
}

// Delete removes id remotely, then locally. A remote failure leaves the
// local record untouched.
func (d *Deleter) Delete(ctx context.Context, id string, opts DeleteOptions) (*DeleteResult, error) {
	remote, _, err := connect(ctx, d.creds, d.remote)
	if err != nil {
		return nil, err
	}

	rec, err := d.images.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("while looking up image %s: %w", id, err)
	}
	if rec == nil {
		return &DeleteResult{Outcome: OutcomeNotFound}, nil
	}

	if !opts.Force {
		if d.confirm == nil {
			return &DeleteResult{Outcome: OutcomeCancelled, Record: rec}, nil
		}
		ok, err := d.confirm.Confirm(rec)
		if err != nil {
			return nil, fmt.Errorf("while asking for confirmation: %w", err)
		}
		if !ok {
			return &DeleteResult{Outcome: OutcomeCancelled, Record: rec}, nil
		}
	}

	if err := remote.DeleteImage(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete image %s: %w", id, err)
	}

	if opts.KeepRecord {
		status := domain.StatusDeleted
		if _, err := d.images.Update(ctx, id, domain.ImageUpdate{Status: &status}); err != nil {
			return nil, fmt.Errorf("image %s deleted remotely but the local record was not updated: %w", id, err)
		}
		d.log.Info("image marked as deleted", zap.String("id", id))
		return &DeleteResult{Outcome: OutcomeSoftDeleted, Record: rec}, nil
	}

	if _, err := d.images.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("image %s deleted remotely but the local record was not removed: %w", id, err)
	}
	d.log.Info("image deleted", zap.String("id", id))
	return &DeleteResult{Outcome: OutcomeDeleted, Record: rec}, nil
}
