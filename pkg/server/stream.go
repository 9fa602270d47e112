package server

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/teslashibe/go-gesture/pkg/frame"
	"github.com/teslashibe/go-gesture/pkg/hub"
	"github.com/teslashibe/go-gesture/pkg/protocol"
)

const msgMalformedEvent = "Malformed event"

// handleStream serves one websocket session. Frames are handled in arrival
// order on the read loop; predictions are broadcast to every session and
// failures go back to the sender only.
func (s *Server) handleStream(c *websocket.Conn) {
	sess := s.hub.Connect(c)
	logger := s.logger.With("session_id", sess.ID)

	sess.Serve(func(data []byte) {
		s.handleEvent(sess, logger, data)
	})
}

func (s *Server) handleEvent(sess *hub.Session, logger *slog.Logger, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		logger.Debug("malformed event", "error", err)
		s.sendError(sess, logger, msgMalformedEvent)
		return
	}

	if !msg.IsVideoFrame() {
		logger.Debug("unknown event", "event", msg.Event)
		s.sendError(sess, logger, "Unknown event: "+string(msg.Event))
		return
	}

	var fd protocol.FrameData
	if err := msg.ParseData(&fd); err != nil || fd.Frame == "" {
		s.sendError(sess, logger, frame.KindMissingPayload.Message())
		return
	}

	result, err := s.recognize(s.ctx, frame.Inline(fd.Frame))
	if err != nil {
		_, text := errorStatus(err)
		logger.Debug("frame rejected", "error", err)
		s.sendError(sess, logger, text)
		return
	}

	// The sender may have been dropped while the frame was classified.
	if !sess.Active() {
		return
	}

	out, err := protocol.NewPredictionMessage(result.Label)
	if err != nil {
		logger.Error("encode prediction", "error", err)
		return
	}
	n, err := s.hub.BroadcastMessage(out)
	if err != nil {
		logger.Error("broadcast prediction", "error", err)
		return
	}
	logger.Debug("prediction broadcast", "label", result.Label, "recipients", n)
}

func (s *Server) sendError(sess *hub.Session, logger *slog.Logger, text string) {
	msg, err := protocol.NewErrorMessage(text)
	if err != nil {
		logger.Error("encode error event", "error", err)
		return
	}
	if ok, _ := sess.SendMessage(msg); !ok {
		logger.Debug("error event dropped", "text", text)
	}
}
