package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tavolo/possync/internal/models"
)

func order(id string, ts time.Time, table string) models.Order {
	return models.Order{
		ID:          id,
		TableNumber: table,
		Status:      models.StatusPending,
		Timestamp:   ts,
		CreatedAt:   ts,
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	now := time.Now()
	remote := []models.Order{
		order("a", now.Add(-30*time.Second), "1"),
		order("b", now.Add(-5*time.Minute), "2"),
	}
	local := []models.Order{
		order("a", now.Add(-10*time.Second), "1"),
		order("c", now.Add(-20*time.Second), "3"),
	}

	first := Orders(remote, local, now, DefaultFreshnessWindow)
	second := Orders(remote, local, now, DefaultFreshnessWindow)

	require.Equal(t, first.Orders, second.Orders)
	require.Equal(t, first.KeptLocal, second.KeptLocal)
	require.Equal(t, first.ZombiesDropped, second.ZombiesDropped)
}

func TestFreshLocalEditWinsOverStaleRemote(t *testing.T) {
	now := time.Now()
	localCopy := order("a", now.Add(-10*time.Second), "5")
	localCopy.WaiterName = "anna"
	remoteCopy := order("a", now.Add(-40*time.Second), "5")
	remoteCopy.WaiterName = "stale"

	res := Orders([]models.Order{remoteCopy}, []models.Order{localCopy}, now, DefaultFreshnessWindow)

	require.Len(t, res.Orders, 1)
	require.Equal(t, "anna", res.Orders[0].WaiterName)
	require.Equal(t, 1, res.KeptLocal)
}

func TestStaleLocalCopyLosesToRemote(t *testing.T) {
	now := time.Now()
	// Local is newer than remote but outside the freshness window.
	localCopy := order("a", now.Add(-90*time.Second), "5")
	localCopy.WaiterName = "old-local"
	remoteCopy := order("a", now.Add(-2*time.Minute), "5")
	remoteCopy.WaiterName = "remote"

	res := Orders([]models.Order{remoteCopy}, []models.Order{localCopy}, now, DefaultFreshnessWindow)

	require.Len(t, res.Orders, 1)
	require.Equal(t, "remote", res.Orders[0].WaiterName)
	require.Zero(t, res.KeptLocal)
}

func TestRemoteNewerThanLocalWins(t *testing.T) {
	now := time.Now()
	localCopy := order("a", now.Add(-20*time.Second), "5")
	remoteCopy := order("a", now.Add(-5*time.Second), "5")
	remoteCopy.Status = models.StatusCooking

	res := Orders([]models.Order{remoteCopy}, []models.Order{localCopy}, now, DefaultFreshnessWindow)

	require.Len(t, res.Orders, 1)
	require.Equal(t, models.StatusCooking, res.Orders[0].Status)
}

func TestZombieEliminated(t *testing.T) {
	now := time.Now()
	zombie := order("z", now.Add(-120*time.Second), "9")

	res := Orders(nil, []models.Order{zombie}, now, DefaultFreshnessWindow)

	require.Empty(t, res.Orders)
	require.Equal(t, 1, res.ZombiesDropped)
}

func TestFreshLocalOnlyOrderSurvives(t *testing.T) {
	now := time.Now()
	offline := order("o", now.Add(-10*time.Second), "4")

	res := Orders(nil, []models.Order{offline}, now, DefaultFreshnessWindow)

	require.Len(t, res.Orders, 1)
	require.Equal(t, "o", res.Orders[0].ID)
}

func TestResultSortedAscendingByTimestamp(t *testing.T) {
	now := time.Now()
	remote := []models.Order{
		order("c", now.Add(-1*time.Second), "3"),
		order("a", now.Add(-30*time.Second), "1"),
		order("b", now.Add(-10*time.Second), "2"),
	}
	local := []models.Order{
		order("d", now.Add(-20*time.Second), "4"),
	}

	res := Orders(remote, local, now, DefaultFreshnessWindow)

	require.Len(t, res.Orders, 4)
	for i := 1; i < len(res.Orders); i++ {
		require.False(t, res.Orders[i].Timestamp.Before(res.Orders[i-1].Timestamp),
			"orders must be non-decreasing by timestamp")
	}
}

func TestNewRemoteOrdersReported(t *testing.T) {
	now := time.Now()
	known := order("a", now.Add(-30*time.Second), "1")
	incoming := order("b", now.Add(-2*time.Second), "2")

	res := Orders([]models.Order{known, incoming}, []models.Order{known}, now, DefaultFreshnessWindow)

	require.Len(t, res.NewFromRemote, 1)
	require.Equal(t, "b", res.NewFromRemote[0].ID)
}

func TestZeroWindowFallsBackToDefault(t *testing.T) {
	now := time.Now()
	offline := order("o", now.Add(-10*time.Second), "4")

	res := Orders(nil, []models.Order{offline}, now, 0)

	require.Len(t, res.Orders, 1)
}
