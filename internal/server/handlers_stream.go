package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"med/dispatch/internal/dispatch"
)

const streamKeepAlive = 15 * time.Second

// handleStream godoc
// @Title Mutation event stream
// @Description Streams entity mutation events over SSE. Slow consumers may miss events and should reconcile via /v1/sync.
// @Resource Common
// @Produce text/event-stream
// @Param kinds query string false "Comma-separated entity kinds (hospital,ambulance,emergency_report). Defaults to all."
// @Route /v1/stream [get]
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	kinds, err := parseStreamKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	// The server-wide write timeout would cut the stream; lift it for this
	// response only.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan dispatch.MutationEvent)
	done := r.Context().Done()
	for _, kind := range kinds {
		sub := s.notifier.Subscribe(kind)
		defer sub.Close()
		go func(sub *dispatch.Subscription) {
			for ev := range sub.C {
				select {
				case events <- ev:
				case <-done:
					return
				}
			}
		}(sub)
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-done:
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Error().Err(err).Msg("marshal mutation event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseStreamKinds(raw string) ([]dispatch.Kind, error) {
	if strings.TrimSpace(raw) == "" {
		return []dispatch.Kind{dispatch.KindHospital, dispatch.KindAmbulance, dispatch.KindReport}, nil
	}
	var kinds []dispatch.Kind
	for _, part := range strings.Split(raw, ",") {
		switch k := dispatch.Kind(strings.TrimSpace(part)); k {
		case dispatch.KindHospital, dispatch.KindAmbulance, dispatch.KindReport:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown entity kind %q", part)
		}
	}
	return kinds, nil
}
