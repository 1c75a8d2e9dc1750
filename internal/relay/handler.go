package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// KeepAliveInterval is how often an idle stream gets a comment line.
const KeepAliveInterval = 15 * time.Second

// SSEHandler returns an http.HandlerFunc that streams broker events as SSE.
// Clients may filter topics via ?topics=name1,name2 query parameter. The
// stream opens with the latest event of each topic.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		var topicFilter map[string]bool
		if q := r.URL.Query().Get("topics"); q != "" {
			topicFilter = make(map[string]bool)
			for _, f := range strings.Split(q, ",") {
				if f = strings.TrimSpace(f); f != "" {
					topicFilter[f] = true
				}
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		keepAlive := time.NewTicker(KeepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if topicFilter != nil && !topicFilter[evt.Topic] {
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.ID, evt.Topic, evt.Data)
				flusher.Flush()
			}
		}
	}
}
