package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/voxform/voxform/internal/core"
	"github.com/voxform/voxform/internal/logger"
	"github.com/voxform/voxform/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConversationHandler runs one conversation session over a WebSocket. Text
// frames carry JSON client messages and binary frames carry audio.
func (h *APIHandler) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	// Server read and write timeouts do not apply to a long-lived session.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.maxUpload)

	session := core.NewSession(core.SessionDeps{
		Scripts:     h.scripts,
		Records:     h.records,
		Transcriber: h.transcriber,
		Language:    h.language,
	})
	defer session.Close()

	metrics.ActiveConversations.Inc()
	defer metrics.ActiveConversations.Dec()
	log := logger.Named("ws")
	log.Debug("conversation opened", zap.String("remote", r.RemoteAddr))

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		defer session.Close()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return err
			}
			if typ == websocket.MessageBinary {
				err = session.HandleAudio(ctx, data)
			} else {
				err = session.HandleMessage(ctx, data)
			}
			if err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case msg := <-session.Outbox():
				if err := wsjson.Write(ctx, conn, msg); err != nil {
					session.Close()
					return err
				}
			case <-session.Done():
				return nil
			case <-ctx.Done():
				session.Close()
				return ctx.Err()
			}
		}
	})

	err = g.Wait()
	switch {
	case err == nil,
		errors.Is(err, core.ErrSessionClosed),
		errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		log.Debug("conversation closed")
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		log.Warn("conversation ended with error", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "session error")
	}
}
