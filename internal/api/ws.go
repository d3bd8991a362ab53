package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"pomflow/backend/internal/pipeline"
)

const writeWait = 10 * time.Second

// WatchRequest is sent by the client whenever the viewed project or section
// changes. Path, when set, is a dashboard route and overrides the other fields.
type WatchRequest struct {
	ProjectID string `json:"project_id"`
	Section   string `json:"section"`
	Path      string `json:"path,omitempty"`
}

// WatchFrame is pushed to the client: a committed state or an error.
type WatchFrame struct {
	Type  string              `json:"type"`
	State *pipeline.State     `json:"state,omitempty"`
	View  []pipeline.NodeView `json:"view,omitempty"`
	Error string              `json:"error,omitempty"`
}

// Frame types.
const (
	FrameState = "state"
	FrameError = "error"
)

// WatchPipeline streams pipeline states over a WebSocket (GET /pipeline/ws).
// Every request frame starts a new evaluation; results superseded by a newer
// request are never sent.
func (s *Server) WatchPipeline(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied.
		s.Logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	// Clear deadlines inherited from the HTTP server timeouts.
	conn.NetConn().SetDeadline(time.Time{})
	log := s.Logger.With("component", "watch", "remote", c.RealIP())
	log.Debug("watch connected")

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))

	var writeMu sync.Mutex
	send := func(frame WatchFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			log.Debug("failed to write frame", "error", err)
			cancel()
		}
	}

	// The tracker runs hooks one at a time, so last needs no extra guard.
	var last *pipeline.State
	tracker := pipeline.NewTracker(s.Evaluator, s.Logger,
		pipeline.WithCommitHook(func(ctx context.Context, state pipeline.State) {
			if last != nil && *last == state {
				return
			}
			last = &state
			s.record(ctx, state)
			send(WatchFrame{Type: FrameState, State: &state, View: pipeline.View(state)})
		}),
	)

	var wg sync.WaitGroup
	run := func(ticket pipeline.Ticket) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.Run(ctx, ticket)
			if err != nil && !errors.Is(err, pipeline.ErrStaleEvaluation) && ctx.Err() == nil {
				log.Warn("evaluation failed", "project_id", ticket.Key.ProjectID, "error", err)
			}
		}()
	}

	if s.PollInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if ticket, ok := tracker.Refresh(); ok {
						run(ticket)
					}
				}
			}
		}()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("watch closed unexpectedly", "error", err)
			}
			break
		}

		var req WatchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			send(WatchFrame{Type: FrameError, Error: "invalid request: " + err.Error()})
			continue
		}
		if req.Path != "" {
			req.ProjectID, req.Section = pipeline.ParseDashboardPath(req.Path)
		}
		if req.ProjectID == "" {
			send(WatchFrame{Type: FrameError, Error: "project_id is required"})
			continue
		}
		run(tracker.Begin(req.ProjectID, req.Section))
	}

	cancel()
	wg.Wait()
	conn.Close()
	log.Debug("watch disconnected")
	return nil
}
