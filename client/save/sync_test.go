package save

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/catjump/catjump/client/cloud"
	"github.com/catjump/catjump/pkg/types"
	"github.com/stretchr/testify/assert"
)

// fakeCloud is an in-memory stand-in for the API client.
type fakeCloud struct {
	snapshot *types.SaveSnapshot
	getErr   error
	putErr   error
	puts     int
}

func (f *fakeCloud) GetSave(ctx context.Context) (*types.SaveSnapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.snapshot == nil {
		return nil, &cloud.APIError{Status: http.StatusNotFound, Message: "save not found"}
	}
	return f.snapshot.Clone(), nil
}

func (f *fakeCloud) PutSave(ctx context.Context, snapshot *types.SaveSnapshot) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.snapshot = snapshot.Clone()
	f.puts++
	return nil
}

func newTestSyncer(c CloudStore, nowMs int64) *Syncer {
	syncer := NewSyncer(NewSyncerOptions{Cloud: c})
	syncer.now = func() time.Time { return time.UnixMilli(nowMs) }
	return syncer
}

func TestReconcile_NoCloudSaveUploadsLocal(t *testing.T) {
	remote := &fakeCloud{}
	syncer := newTestSyncer(remote, 100000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 500
	local.LastSaved = 90000

	result := syncer.Reconcile(context.Background(), local)

	assert.Equal(t, int64(500), result.Currency.Coins)
	assert.Equal(t, 1, remote.puts)
	assert.Equal(t, int64(500), remote.snapshot.Currency.Coins)
}

func TestReconcile_NoLocalSaveStartsFromCloud(t *testing.T) {
	cloudSnapshot := types.DefaultSaveSnapshot()
	cloudSnapshot.Currency.Coins = 700
	cloudSnapshot.LastSaved = 90000
	remote := &fakeCloud{snapshot: cloudSnapshot}
	syncer := newTestSyncer(remote, 100000+DefaultConflictWindowMs*2)

	result := syncer.Reconcile(context.Background(), nil)

	assert.Equal(t, int64(700), result.Currency.Coins)
}

func TestReconcile_CloudNewerWinsWholesale(t *testing.T) {
	cloudSnapshot := types.DefaultSaveSnapshot()
	cloudSnapshot.Currency.Coins = 900
	cloudSnapshot.LastSaved = 500000
	remote := &fakeCloud{snapshot: cloudSnapshot}
	syncer := newTestSyncer(remote, 600000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 100
	local.LastSaved = 100000

	result := syncer.Reconcile(context.Background(), local)

	assert.Equal(t, int64(900), result.Currency.Coins)
	assert.Equal(t, 0, remote.puts)
}

func TestReconcile_LocalNewerWinsAndUploads(t *testing.T) {
	cloudSnapshot := types.DefaultSaveSnapshot()
	cloudSnapshot.Currency.Coins = 900
	cloudSnapshot.LastSaved = 100000
	remote := &fakeCloud{snapshot: cloudSnapshot}
	syncer := newTestSyncer(remote, 600000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 100
	local.LastSaved = 500000

	result := syncer.Reconcile(context.Background(), local)

	assert.Equal(t, int64(100), result.Currency.Coins)
	assert.Equal(t, 1, remote.puts)
}

func TestReconcile_TimestampsWithinWindowMerge(t *testing.T) {
	cloudSnapshot := types.DefaultSaveSnapshot()
	cloudSnapshot.Currency.Coins = 900
	cloudSnapshot.Stats.HighScore = 1000
	cloudSnapshot.LastSaved = 100000
	remote := &fakeCloud{snapshot: cloudSnapshot}
	syncer := newTestSyncer(remote, 200000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 300
	local.Stats.HighScore = 2000
	local.LastSaved = 100000 + DefaultConflictWindowMs/2

	result := syncer.Reconcile(context.Background(), local)

	// Field-level merge, not a wholesale pick.
	assert.Equal(t, int64(900), result.Currency.Coins)
	assert.Equal(t, int64(2000), result.Stats.HighScore)
	assert.Equal(t, int64(200000), result.LastSaved)
	assert.Equal(t, 1, remote.puts)
}

func TestReconcile_EqualTimestampsIsNoOp(t *testing.T) {
	cloudSnapshot := types.DefaultSaveSnapshot()
	cloudSnapshot.Currency.Coins = 500
	cloudSnapshot.LastSaved = 100000
	remote := &fakeCloud{snapshot: cloudSnapshot}
	syncer := newTestSyncer(remote, 200000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 500
	local.LastSaved = 100000

	result := syncer.Reconcile(context.Background(), local)

	// Same write on both sides: no restamp, no upload.
	assert.Equal(t, int64(100000), result.LastSaved)
	assert.Equal(t, 0, remote.puts)
}

func TestReconcile_DiffAtWindowAdoptsNewerSide(t *testing.T) {
	cloudSnapshot := types.DefaultSaveSnapshot()
	cloudSnapshot.Currency.Coins = 900
	cloudSnapshot.Stats.HighScore = 1000
	cloudSnapshot.LastSaved = 100000 + DefaultConflictWindowMs
	remote := &fakeCloud{snapshot: cloudSnapshot}
	syncer := newTestSyncer(remote, 300000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 300
	local.Stats.HighScore = 2000
	local.LastSaved = 100000

	result := syncer.Reconcile(context.Background(), local)

	// Exactly one window apart is not concurrent: the cloud copy wins
	// wholesale instead of merging.
	assert.Equal(t, int64(900), result.Currency.Coins)
	assert.Equal(t, int64(1000), result.Stats.HighScore)
	assert.Equal(t, 0, remote.puts)
}

func TestReconcile_CloudErrorFailsOpen(t *testing.T) {
	remote := &fakeCloud{getErr: fmt.Errorf("network down")}
	syncer := newTestSyncer(remote, 100000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 500

	result := syncer.Reconcile(context.Background(), local)

	assert.Equal(t, int64(500), result.Currency.Coins)
}

func TestReconcile_UploadFailureStillReturnsWinner(t *testing.T) {
	remote := &fakeCloud{putErr: fmt.Errorf("write refused")}
	syncer := newTestSyncer(remote, 100000)

	local := types.DefaultSaveSnapshot()
	local.Currency.Coins = 500

	result := syncer.Reconcile(context.Background(), local)

	assert.Equal(t, int64(500), result.Currency.Coins)
}
