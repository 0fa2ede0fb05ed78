//go:build cgo

package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// 与纯 Go 驱动各跑一遍:CGO 版 SQLite 的类型亲和与锁行为略有差异
func TestJournal_WithCgoSqliteDriver(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&ScaleEvent{}))

	config := DefaultConfig()
	config.HealthCheckInterval = 0
	j, err := New(db, config, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, ScaleEvent{
		AvgLatency:  90 * time.Millisecond,
		SampleCount: 4,
		Replicas:    2,
		Desired:     2,
		Direction:   "hold",
		Reason:      "within dead band",
	}))
	require.NoError(t, j.Record(ctx, sampleEvent(3, "up")))

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "up", events[0].Direction)
	assert.Equal(t, "hold", events[1].Direction)
	assert.Equal(t, 90*time.Millisecond, events[1].AvgLatency)

	summary, err := j.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary["up"])
	assert.Equal(t, int64(1), summary["hold"])
}
