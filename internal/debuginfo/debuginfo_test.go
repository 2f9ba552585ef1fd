package debuginfo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthya1104/ft-raid-core/internal/debuginfo"
)

type raidSnapshot struct {
	AbnormalDevices int
}

func TestMaker_SyncSample_AppendsHistory(t *testing.T) {
	i := 0
	m := debuginfo.Register[raidSnapshot]("sync_test", 4, false, 0, true,
		func() raidSnapshot { i++; return raidSnapshot{AbnormalDevices: i} },
		func(s raidSnapshot) debuginfo.Okay {
			if s.AbnormalDevices >= 3 {
				return debuginfo.Fail
			}
			return debuginfo.Pass
		})
	defer m.Close()

	m.Sample()
	m.Sample()
	require.Equal(t, 2, m.Len())
	assert.Equal(t, debuginfo.Pass, m.SummaryOkay())

	m.Sample() // AbnormalDevices == 3 -> Fail
	assert.Equal(t, debuginfo.Fail, m.SummaryOkay())
	assert.Len(t, m.ErrorHistory(), 1)
}

func TestMaker_RingDropsOldest(t *testing.T) {
	i := 0
	m := debuginfo.Register[raidSnapshot]("ring_test", 2, false, 0, true,
		func() raidSnapshot { i++; return raidSnapshot{AbnormalDevices: i} }, nil)
	defer m.Close()

	m.Sample()
	m.Sample()
	m.Sample()
	hist := m.History()
	require.Len(t, hist, 2)
	assert.Equal(t, 2, hist[0].AbnormalDevices)
	assert.Equal(t, 3, hist[1].AbnormalDevices)
}

func TestMaker_Disabled_NeverSamples(t *testing.T) {
	m := debuginfo.Register[raidSnapshot]("disabled_test", 4, false, 0, false,
		func() raidSnapshot { return raidSnapshot{} }, nil)
	defer m.Close()

	m.Sample()
	assert.Equal(t, 0, m.Len())
}

func TestMaker_Async_SamplesOnTimer(t *testing.T) {
	m := debuginfo.Register[raidSnapshot]("async_test", 8, true, 2000, true,
		func() raidSnapshot { return raidSnapshot{AbnormalDevices: 0} }, nil)
	defer m.Close()

	time.Sleep(20 * time.Millisecond)
	assert.Greater(t, m.Len(), 0)
}

func TestMaker_SummaryOkay_IsMonotonic(t *testing.T) {
	grades := []debuginfo.Okay{debuginfo.Pass, debuginfo.Fail, debuginfo.Warn, debuginfo.Pass}
	idx := 0
	m := debuginfo.Register[raidSnapshot]("monotonic_test", 8, false, 0, true,
		func() raidSnapshot { idx++; return raidSnapshot{} },
		func(raidSnapshot) debuginfo.Okay { g := grades[idx-1]; return g })
	defer m.Close()

	for range grades {
		m.Sample()
	}
	assert.Equal(t, debuginfo.Fail, m.SummaryOkay())
}
