package webui

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/timeline"
)

const (
	wsKeepalive    = 15 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// wsRequest is the client-sent control message: switch range or report the
// rendering surface after a resize.
type wsRequest struct {
	Range  string `json:"range"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// wsUpdate is the server-sent update: everything the activity page needs to
// repaint.
type wsUpdate struct {
	Generation uint64         `json:"generation"`
	Range      string         `json:"range"`
	SVG        string         `json:"svg"`
	Summary    map[string]int `json:"summary"`
	Total      int            `json:"total"`
	Recent     []api.Activity `json:"recent"`
	FetchedAt  time.Time      `json:"fetched_at"`
}

// handleWS upgrades to WebSocket and streams feed updates. Each connection
// owns a poller bound to the session's token, so backend access ends with
// the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rng := timeline.RangeToday
	if raw := r.URL.Query().Get("range"); raw != "" {
		parsed, err := timeline.ParseRange(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng = parsed
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	s.metrics.wsClients.Inc()
	defer s.metrics.wsClients.Dec()

	ctx := r.Context()

	poller := timeline.NewPoller(s.client.Activities, rng, s.logger, timeline.Options{
		Interval:    s.pollInterval,
		Location:    s.location,
		RecentLimit: s.recentLimit,
		Now:         s.now,
	})

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go poller.Run(pollCtx)

	notifyCh, unsubscribe := poller.Subscribe()
	defer unsubscribe()

	// Surface dimensions follow the client's reports; zero means defaults.
	var width, height int

	// Read control messages in a goroutine so the push loop never blocks on
	// the client.
	reqCh := make(chan wsRequest, 4)
	go func() {
		defer close(reqCh)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req wsRequest
			if sonic.Unmarshal(data, &req) == nil {
				select {
				case reqCh <- req:
				default:
				}
			}
		}
	}()

	// Initial state right away; the first poll cycle replaces it.
	s.pushUpdate(ctx, conn, poller, width, height)

	keepalive := time.NewTicker(wsKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return

		case req, ok := <-reqCh:
			if !ok {
				// Client disconnected.
				return
			}
			if req.Width > 0 {
				width = req.Width
			}
			if req.Height > 0 {
				height = req.Height
			}
			if req.Range != "" {
				parsed, err := timeline.ParseRange(req.Range)
				if err != nil {
					s.logger.Debug("ws range ignored", zap.String("range", req.Range))
				} else {
					poller.SetRange(parsed)
					// The refresh for the new range notifies when done;
					// nothing to push yet.
					continue
				}
			}
			s.pushUpdate(ctx, conn, poller, width, height)

		case <-notifyCh:
			s.pushUpdate(ctx, conn, poller, width, height)

		case <-keepalive.C:
			s.pushUpdate(ctx, conn, poller, width, height)
		}
	}
}

// pushUpdate snapshots the poller and writes one update frame.
func (s *Server) pushUpdate(ctx context.Context, conn *websocket.Conn, poller *timeline.Poller, width, height int) {
	snap := poller.Snapshot()

	update := wsUpdate{
		Generation: snap.Generation,
		Range:      snap.Range.String(),
		SVG:        s.renderRadial(snap.Buckets, snap.Range, width, height, s.now().In(s.location)),
		Summary:    snap.Summary,
		Total:      snap.Total,
		Recent:     snap.Recent,
		FetchedAt:  snap.FetchedAt,
	}

	data, err := sonic.Marshal(update)
	if err != nil {
		s.logger.Error("ws update marshal failed", zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		// Connection closed; the main loop will notice via the reader.
		return
	}
}
