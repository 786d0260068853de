package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecomputer struct {
	calls    int
	repaired int
	err      error
}

func (s *stubRecomputer) RecomputeAll(context.Context) (int, error) {
	s.calls++
	return s.repaired, s.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := New(quietLogger())
	err := s.Register(NewReconcileJob(&stubRecomputer{}, "every now and then", quietLogger()))
	assert.Error(t, err)
}

func TestRunByName(t *testing.T) {
	s := New(quietLogger())
	rec := &stubRecomputer{repaired: 2}
	require.NoError(t, s.Register(NewReconcileJob(rec, "@every 1h", quietLogger())))
	assert.Equal(t, []string{"reconcile-store-aggregates"}, s.Jobs())

	require.NoError(t, s.RunByName(context.Background(), "reconcile-store-aggregates"))
	assert.Equal(t, 1, rec.calls)

	rec.err = errors.New("db down")
	assert.Error(t, s.RunByName(context.Background(), "reconcile-store-aggregates"))

	assert.Error(t, s.RunByName(context.Background(), "missing"))
}

func TestStartStop(t *testing.T) {
	s := New(quietLogger())
	require.NoError(t, s.Register(NewReconcileJob(&stubRecomputer{}, "", quietLogger())))
	s.Start()
	s.Stop(context.Background())
}
