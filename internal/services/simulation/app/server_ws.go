package server

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
	"github.com/urnalabs/apura/internal/platform/errors/i18n"
	"github.com/urnalabs/apura/internal/platform/timeouts"
)

type streamErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *handler) handleWatchSimulation(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serveWatch).ServeHTTP(w, r)
}

// serveWatch streams a session's events to one subscriber. Auth and lookup
// failures are reported as an error frame before the close so browser
// clients can distinguish rejection from a network drop.
func (h *handler) serveWatch(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	r := conn.Request()
	encoder := json.NewEncoder(conn)
	locale := resolveLocale(r)
	sessionID := r.PathValue("id")

	if h.grants.Enabled() {
		if _, err := ValidateViewerGrant(viewerGrantFromRequest(r), h.grants); err != nil {
			writeStreamError(encoder, sessionID, locale, err)
			return
		}
	}

	runner, err := h.registry.get(sessionID)
	if err != nil {
		writeStreamError(encoder, sessionID, locale, err)
		return
	}

	subscriber := newStreamSubscriber(func(frame eventFrame) error {
		if err := conn.SetWriteDeadline(time.Now().Add(timeouts.SubscriberWrite)); err != nil {
			return err
		}
		return encoder.Encode(frame)
	})
	runner.room.join(subscriber)
	defer runner.room.leave(subscriber)

	go subscriber.run()

	// Client frames carry no protocol meaning; the read loop only detects
	// the peer going away.
	go func() {
		var discard [256]byte
		for {
			if _, err := conn.Read(discard[:]); err != nil {
				subscriber.disconnect()
				return
			}
		}
	}()

	<-subscriber.done

	if subscriber.evicted() {
		_ = conn.SetWriteDeadline(time.Now().Add(timeouts.SubscriberWrite))
		writeStreamError(encoder, sessionID, locale, apperrors.New(apperrors.CodeStreamSlowConsumer, "subscriber fell behind the event stream"))
	}
}

func writeStreamError(encoder *json.Encoder, sessionID string, locale string, err error) {
	code := apperrors.CodeOf(err)
	payload := mustJSON(streamErrorPayload{
		Code:    string(code),
		Message: i18n.GetCatalog(locale).Format(string(code), apperrors.MetadataOf(err)),
	})
	_ = encoder.Encode(eventFrame{
		Type:      frameTypeError,
		SessionID: sessionID,
		Payload:   payload,
	})
}
