package system

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

type recordingService struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (s recordingService) Name() string { return s.name }

func (s recordingService) Start(context.Context) error {
	*s.events = append(*s.events, "start:"+s.name)
	return s.startErr
}

func (s recordingService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return s.stopErr
}

func TestManagerOrdering(t *testing.T) {
	var events []string
	m := NewManager(logger.NewWithOutput("system", &bytes.Buffer{}))
	m.Register(recordingService{name: "a", events: &events})
	m.Register(nil)
	m.Register(recordingService{name: "b", events: &events})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
	assert.Len(t, m.Services(), 2)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var events []string
	m := NewManager(logger.NewWithOutput("system", &bytes.Buffer{}))
	m.Register(recordingService{name: "a", events: &events})
	m.Register(recordingService{name: "b", events: &events, startErr: errors.New("boom")})
	m.Register(recordingService{name: "c", events: &events})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, events)
}

func TestManagerJoinsStopErrors(t *testing.T) {
	var events []string
	m := NewManager(logger.NewWithOutput("system", &bytes.Buffer{}))
	m.Register(recordingService{name: "a", events: &events, stopErr: errors.New("x")})
	m.Register(recordingService{name: "b", events: &events, stopErr: errors.New("y")})

	require.NoError(t, m.Start(context.Background()))
	err := m.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop a")
	assert.Contains(t, err.Error(), "stop b")
}
