package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/testsupport"
	"relevance-engine/domain/core/valueobjects"
)

func TestDetector_NoopsWithoutAccessHistory(t *testing.T) {
	accessLog := testsupport.NewAccessLogRepository()
	patterns := testsupport.NewTemporalPatternRepository()
	d := NewDetector(accessLog, patterns, nil, DefaultConfig(), nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	require.NoError(t, d.DetectForUser(context.Background(), userID, time.Now()))

	pattern, err := patterns.FindByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, pattern)
}

func TestDetector_SkipsBeforeInitialReadinessWindow(t *testing.T) {
	accessLog := testsupport.NewAccessLogRepository()
	patterns := testsupport.NewTemporalPatternRepository()
	d := NewDetector(accessLog, patterns, nil, DefaultConfig(), nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	start := time.Now().Add(-48 * time.Hour)
	for h := 0; h < 48; h++ {
		require.NoError(t, accessLog.RecordAccess(context.Background(), userID, start.Add(time.Duration(h)*time.Hour)))
	}

	require.NoError(t, d.DetectForUser(context.Background(), userID, time.Now()))

	pattern, err := patterns.FindByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, pattern, "fewer than 21 days of history must not produce a persisted pattern")
}
