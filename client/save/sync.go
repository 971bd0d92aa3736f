package save

import (
	"context"
	"time"

	"github.com/catjump/catjump/client/cloud"
	"github.com/catjump/catjump/pkg/log"
	pkgsave "github.com/catjump/catjump/pkg/save"
	"github.com/catjump/catjump/pkg/types"
)

// DefaultConflictWindowMs is how close two lastSaved stamps must be for
// the two snapshots to count as concurrent and get merged rather than
// overwritten.
const DefaultConflictWindowMs = 60000

// CloudStore is the subset of the API client the syncer needs.
type CloudStore interface {
	GetSave(ctx context.Context) (*types.SaveSnapshot, error)
	PutSave(ctx context.Context, snapshot *types.SaveSnapshot) error
}

// Syncer reconciles the local save with the cloud copy at boot. Cloud
// errors never block play: the local snapshot wins and the next boot
// retries.
type Syncer struct {
	cloud    CloudStore
	windowMs int64
	now      func() time.Time
}

type NewSyncerOptions struct {
	Cloud CloudStore
	// ConflictWindowMs overrides DefaultConflictWindowMs. Optional.
	ConflictWindowMs int64
}

func NewSyncer(opts NewSyncerOptions) *Syncer {
	windowMs := opts.ConflictWindowMs
	if windowMs <= 0 {
		windowMs = DefaultConflictWindowMs
	}
	return &Syncer{
		cloud:    opts.Cloud,
		windowMs: windowMs,
		now:      time.Now,
	}
}

// Reconcile returns the snapshot the game should play with. Equal
// lastSaved stamps mean the two copies are the same write, so nothing is
// merged or uploaded. Distinct timestamps within the conflict window
// merge field-by-field; otherwise the newer side wins wholesale. The
// winner is uploaded unless it came from the cloud unchanged.
func (s *Syncer) Reconcile(ctx context.Context, local *types.SaveSnapshot) *types.SaveSnapshot {
	if local == nil {
		local = types.DefaultSaveSnapshot()
	}

	remote, err := s.cloud.GetSave(ctx)
	if err != nil {
		if cloud.IsNotFound(err) {
			s.upload(ctx, local)
			return local
		}
		log.Warn("Failed to fetch cloud save, playing with local copy: %v", err)
		return local
	}
	remote = pkgsave.Migrate(remote)

	diff := local.LastSaved - remote.LastSaved
	if diff < 0 {
		diff = -diff
	}

	switch {
	case local.LastSaved == remote.LastSaved:
		return local
	case diff < s.windowMs:
		merged := pkgsave.Merge(local, remote, s.now().UnixMilli())
		s.upload(ctx, merged)
		return merged
	case remote.LastSaved > local.LastSaved:
		return remote
	default:
		s.upload(ctx, local)
		return local
	}
}

func (s *Syncer) upload(ctx context.Context, snapshot *types.SaveSnapshot) {
	if err := s.cloud.PutSave(ctx, snapshot); err != nil {
		log.Warn("Failed to upload save: %v", err)
	}
}
