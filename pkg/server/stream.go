package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/solasta/solasta/pkg/engine"
)

// handleStream serves the live progress feed for one goal as server-sent
// events. The subscription is goal-filtered; idle connections get a
// heartbeat comment so proxies do not cut them. The stream ends when a
// terminal event arrives, the client disconnects, or the bus closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, engine.ErrCodeInternal,
			"streaming unsupported by connection")
		return
	}

	goal, err := s.store.GetGoal(r.Context(), goalID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	// Subscribe before the snapshot so no event falls in the gap between
	// reading the goal and listening.
	subID, events := s.bus.Subscribe(goalID)
	defer s.bus.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot := snapshotEvent(goal)
	s.writeEvent(w, snapshot)
	flusher.Flush()
	if snapshot.Type.IsTerminal() {
		return
	}

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	log := s.logger.With().Str("goal_id", goalID).Str("subscriber_id", subID).Logger()
	log.Debug().Msg("Event stream opened")

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Msg("Event stream client disconnected")
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case event, open := <-events:
			if !open {
				return
			}
			s.writeEvent(w, event)
			flusher.Flush()
			if event.Type.IsTerminal() {
				log.Debug().Str("event_type", string(event.Type)).Msg("Event stream finished")
				return
			}
		}
	}
}

// writeEvent writes one SSE frame: id, event name, and a JSON data line.
func (s *Server) writeEvent(w http.ResponseWriter, event *engine.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal stream event")
		return
	}

	if event.ID != "" {
		fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// snapshotEvent translates the goal's current state into the first event a
// new listener receives. A goal that already finished yields its terminal
// event so the listener can stop immediately.
func snapshotEvent(goal *engine.Goal) *engine.StreamEvent {
	eventType := engine.EventGoalStatus
	payload := map[string]interface{}{
		"status": string(goal.Status),
	}

	switch goal.Status {
	case engine.GoalStatusCompleted:
		eventType = engine.EventGoalCompleted
	case engine.GoalStatusFailed:
		eventType = engine.EventGoalFailed
		if goal.Error != "" {
			payload["error"] = goal.Error
		}
	}

	return &engine.StreamEvent{
		Type:      eventType,
		GoalID:    goal.ID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
