package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	got []Event
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.got = append(p.got, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestDispatch(t *testing.T) {
	ev := New(ClaimCreated, 42)
	ev.ReferenceID = "CLABCDEFGHJK"
	ev.Points = 500
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	var seen Event
	require.NoError(t, Dispatch(context.Background(), body, func(_ context.Context, e Event) error {
		seen = e
		return nil
	}))
	require.Equal(t, ClaimCreated, seen.Type)
	require.EqualValues(t, 42, seen.UserID)
	require.Equal(t, 500, seen.Points)

	require.Error(t, Dispatch(context.Background(), []byte("{"), nil))
	require.Error(t, Dispatch(context.Background(), []byte(`{"user_id":1}`), nil))

	boom := errors.New("boom")
	err = Dispatch(context.Background(), body, func(context.Context, Event) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestEmitSwallowsFailures(t *testing.T) {
	p := &recordingPublisher{err: errors.New("broker down")}
	Emit(p, New(SubmissionCreated, 1), New(PointsChanged, 1))
	require.Len(t, p.got, 2)

	Emit(nil, New(SubmissionCreated, 1))
}

func TestNewPublisherWithoutBroker(t *testing.T) {
	p := NewPublisher("", "events")
	_, ok := p.(NopPublisher)
	require.True(t, ok)
	require.NoError(t, p.Publish(context.Background(), New(SubmissionCreated, 1)))
	require.NoError(t, p.Close())
}

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublishDoesNotStallOnSilentBroker(t *testing.T) {
	p := NewAMQPPublisher(silentBroker(t), "events")
	t.Cleanup(func() { _ = p.Close() })

	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			errs[i] = p.Publish(ctx, New(SubmissionCreated, 1))
		}(i)
	}
	wg.Wait()
	require.Less(t, time.Since(start), 2*time.Second)
	for _, err := range errs {
		require.Error(t, err)
	}

	// the failed dial is not retried straight away
	start = time.Now()
	err := p.Publish(context.Background(), New(SubmissionCreated, 1))
	require.ErrorIs(t, err, ErrBrokerUnavailable)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
