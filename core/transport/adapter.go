// Package transport connects a websocket to a pipeline session: inbound
// binary frames become the audio source and pipeline events go back out as
// text or binary frames.
package transport

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/gorilla/websocket"
	pipeline "github.com/koscakluka/jarvis-voice/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrPipelineFatal = errors.New("pipeline failed")

// Conn is the part of a websocket connection the adapter uses. Both
// gorilla and fiber websocket connections satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Adapter struct {
	pipeline *pipeline.Pipeline
	observer Observer
}

type Option func(*Adapter)

func WithObserver(observer Observer) Option {
	return func(a *Adapter) {
		if observer != nil {
			a.observer = observer
		}
	}
}

func New(p *pipeline.Pipeline, opts ...Option) *Adapter {
	a := &Adapter{pipeline: p, observer: NoopObserver{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Serve drives one session over conn until the client disconnects or a
// write fails. It closes conn before returning. A panic inside the pipeline
// is reported to the client with one error frame and returned wrapped in
// ErrPipelineFatal.
func (a *Adapter) Serve(ctx context.Context, conn Conn) (err error) {
	session := a.pipeline.NewSession()
	defer session.Close()

	ctx, span := tracer.Start(ctx, "serve session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.ID()))

	a.observer.ConnectionOpened()
	defer a.observer.ConnectionClosed()

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			if err := conn.Close(); err != nil {
				logger.DebugContext(ctx, "failed to close connection", "error", err)
			}
		})
	}
	defer closeConn()

	// Closing the connection unblocks a pending read once ctx ends.
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%w: %v", ErrPipelineFatal, recovered)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		a.observer.PipelineFailed()
		logger.ErrorContext(ctx, "pipeline failed", "session", session.ID(), "error", err)

		if writeErr := conn.WriteMessage(websocket.TextMessage, encodeError(err.Error())); writeErr != nil {
			logger.DebugContext(ctx, "failed to send error frame", "error", writeErr)
		}
		closeConn()
	}()

	for event := range session.Run(ctx, a.source(ctx, conn)) {
		messageType, payload, ok, err := encodeEvent(event)
		if err != nil {
			logger.WarnContext(ctx, "dropping event", "kind", string(event.Kind()), "error", err)
			continue
		}
		if !ok {
			continue
		}

		if err := conn.WriteMessage(messageType, payload); err != nil {
			logger.DebugContext(ctx, "write failed, closing session", "session", session.ID(), "error", err)
			return nil
		}
		a.observer.FrameSent(messageType == websocket.BinaryMessage, len(payload))
	}
	return nil
}

// source yields inbound binary frames until the connection ends. Text frames
// are ignored.
func (a *Adapter) source(ctx context.Context, conn Conn) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.DebugContext(ctx, "connection read ended", "error", err)
				}
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}

			a.observer.FrameReceived(len(data))
			if len(data) == 0 {
				continue
			}
			if !yield(data) {
				return
			}
		}
	}
}
