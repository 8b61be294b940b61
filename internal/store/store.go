// Package store defines the relation store: durable records for threats,
// mitigations, subdomains and saved iterations.
package store

import (
	"context"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = apperr.ErrNotFound

// Store is implemented by every backend. Upserts overwrite by primary key and
// stamp the record's created date with the time of the write. Backends do not
// validate field values and do not check that a mitigation's threat exists.
type Store interface {
	UpsertThreat(ctx context.Context, t models.Threat) error
	GetThreat(ctx context.Context, id string) (models.Threat, error)
	// ListThreats returns every threat ordered by id.
	ListThreats(ctx context.Context) ([]models.Threat, error)
	// DeleteThreat removes the threat and all of its mitigations atomically.
	DeleteThreat(ctx context.Context, id string) error

	UpsertMitigation(ctx context.Context, m models.Mitigation) error
	GetMitigation(ctx context.Context, id string) (models.Mitigation, error)
	// ListMitigationsForThreat returns the threat's mitigations ordered by id.
	ListMitigationsForThreat(ctx context.Context, threatID string) ([]models.Mitigation, error)
	// ListAllMitigations returns every mitigation ordered by id with the name
	// of its threat, empty when the threat no longer exists.
	ListAllMitigations(ctx context.Context) ([]models.MitigationWithThreat, error)
	DeleteMitigation(ctx context.Context, id string) error

	UpsertSubdomain(ctx context.Context, s models.Subdomain) error
	// ListSubdomains returns subdomains ordered by parent domain then name.
	// An empty parent lists all of them.
	ListSubdomains(ctx context.Context, parent string) ([]models.Subdomain, error)

	// UpsertIteration stores data under name, replacing any earlier save.
	// A failed write leaves the earlier row intact.
	UpsertIteration(ctx context.Context, name, description string, data []byte) error
	LoadIteration(ctx context.Context, name string) ([]byte, error)
	// ListIterations returns saved iterations, newest first.
	ListIterations(ctx context.Context) ([]models.IterationInfo, error)

	Close() error
}
