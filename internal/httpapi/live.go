package httpapi

import (
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleLiveStats streams the stats payload over a websocket: one frame
// on connect, then one frame after every aggregate change. Change
// signals are coalesced, so a burst of ingested messages produces a
// single fresh frame rather than one per message.
func (s *Server) handleLiveStats(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	updates, cancel := s.store.Watch()
	defer cancel()

	for {
		if err := wsjson.Write(ctx, conn, s.store.Stats()); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-updates:
		}
	}
}
