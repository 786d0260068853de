package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter struct {
	n   int64
	err error
}

func (f fixedCounter) Count(context.Context) (int64, error) { return f.n, f.err }

func TestDashboardStatsWithoutRedis(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := NewStatService(fixedCounter{n: 4}, fixedCounter{n: 2}, fixedCounter{n: 7}, nil, time.Minute, log)
	stats, err := svc.GetDashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.TotalStores)
	assert.Equal(t, int64(7), stats.TotalRatings)

	svc.Invalidate(context.Background())
}

func TestDashboardStatsPropagatesErrors(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := NewStatService(fixedCounter{n: 1}, fixedCounter{err: errors.New("db down")}, fixedCounter{}, nil, 0, log)
	_, err := svc.GetDashboardStats(context.Background())
	assert.Error(t, err)
}
