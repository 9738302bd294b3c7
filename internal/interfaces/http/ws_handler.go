package http

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/pot-code/enlingo/internal/course"
	infra "github.com/pot-code/enlingo/internal/infrastructure"
)

// HandleProgressionStream push the tracker snapshot on connect and after every change.
// Changes arriving faster than the peer reads are coalesced, the latest snapshot is always sent.
func (ch *CourseHandler) HandleProgressionStream(ctx context.Context, conn *websocket.Conn) error {
	changed := make(chan struct{}, 1)
	unsubscribe := ch.tracker.Subscribe(func(course.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := infra.WriteJSON(conn, ch.tracker.Snapshot()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := infra.WriteJSON(conn, ch.tracker.Snapshot()); err != nil {
				return err
			}
		}
	}
}
