package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

func TestServeEchoesUntilEOF(t *testing.T) {
	in, inWriter := io.Pipe()
	out := &safeBuffer{}
	tr := NewStdioTransportWithStreams(DefaultConfig(),
		Options{Logger: logging.NopLogger{}}, in, out)

	var handled atomic.Int32
	handler := func(ctx context.Context, msg *TransportMessage) (*TransportMessage, error) {
		handled.Add(1)
		return NewMessage(msg.Content), nil
	}

	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), tr, handler, 4, logging.NopLogger{})
	}()

	for i := 0; i < 3; i++ {
		payload := fmt.Sprintf(`{"id":%d}`, i)
		fmt.Fprintf(inWriter, "Content-Length: %d\r\n\r\n%s", len(payload), payload)
	}
	inWriter.Close()

	select {
	case err := <-done:
		assert.NoError(t, err, "clean end of stream must not be an error")
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop never returned")
	}
	assert.Equal(t, int32(3), handled.Load())

	// Every reply went out framed.
	fr := NewFrameReader(bytes.NewReader(out.Bytes()), 0)
	replies := 0
	for {
		if _, err := fr.ReadFrame(); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
		replies++
	}
	assert.Equal(t, 3, replies)
}

func TestServeHandlerErrorDoesNotEndLoop(t *testing.T) {
	in, inWriter := io.Pipe()
	tr := NewStdioTransportWithStreams(DefaultConfig(),
		Options{Logger: logging.NopLogger{}}, in, io.Discard)

	var handled atomic.Int32
	handler := func(ctx context.Context, msg *TransportMessage) (*TransportMessage, error) {
		if handled.Add(1) == 1 {
			return nil, fmt.Errorf("first message fails")
		}
		return nil, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), tr, handler, 1, logging.NopLogger{})
	}()

	for i := 0; i < 2; i++ {
		payload := fmt.Sprintf(`{"id":%d}`, i)
		fmt.Fprintf(inWriter, "Content-Length: %d\r\n\r\n%s", len(payload), payload)
	}
	inWriter.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop never returned")
	}
	assert.Equal(t, int32(2), handled.Load())
}

func TestServeStopsOnContextCancel(t *testing.T) {
	in, _ := io.Pipe()
	tr := NewStdioTransportWithStreams(DefaultConfig(),
		Options{Logger: logging.NopLogger{}}, in, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, tr, func(context.Context, *TransportMessage) (*TransportMessage, error) {
			return nil, nil
		}, 2, logging.NopLogger{})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop did not honor cancellation")
	}
}
