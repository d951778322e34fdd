package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject    string
	data       []byte
	flushedFor time.Duration
	publishErr error
	closed     bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.subject = subject
	f.data = data
	return nil
}

func (f *fakeConn) FlushTimeout(timeout time.Duration) error {
	f.flushedFor = timeout
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestPublishBuildFinished(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "sitepack.build.finished")

	err := p.PublishBuildFinished(context.Background(), BuildFinished{
		BuildID:      "b-1",
		Outcome:      "failed",
		ErrorStage:   "pack_assets",
		Error:        "boom",
		AssetsPacked: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "sitepack.build.finished", conn.subject)
	assert.Equal(t, defaultFlushTimeout, conn.flushedFor)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, TypeBuildFinished, got["type"])
	assert.Equal(t, "b-1", got["build_id"])
	assert.Equal(t, "pack_assets", got["error_stage"])
	assert.InDelta(t, 1, got["assets_packed"], 0)

	p.Close()
	assert.True(t, conn.closed)
}

func TestPublishUsesContextDeadline(t *testing.T) {
	conn := &fakeConn{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, NewPublisher(conn, "s").PublishBuildFinished(ctx, BuildFinished{}))
	assert.LessOrEqual(t, conn.flushedFor, time.Second)
}

func TestPublishError(t *testing.T) {
	conn := &fakeConn{publishErr: errors.New("disconnected")}
	err := NewPublisher(conn, "s").PublishBuildFinished(context.Background(), BuildFinished{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disconnected")
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "s")
	require.Error(t, err)
}
