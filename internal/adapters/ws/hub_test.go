package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/storyrank/internal/adapters/ws"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(h *ws.Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, r.URL.Query().Get("session"))
	}))
}

func dial(srv *httptest.Server, session string, header http.Header) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
	return websocket.DefaultDialer.Dial(url, header)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestHub_Publish(t *testing.T) {
	Convey("Given two clients on one session and one on another", t, func() {
		hub := ws.NewHub(ws.WithWriteTimeout(time.Second))
		srv := newServer(hub)
		defer srv.Close()

		a, _, err := dial(srv, "s-1", nil)
		So(err, ShouldBeNil)
		defer a.Close()
		b, _, err := dial(srv, "s-1", nil)
		So(err, ShouldBeNil)
		defer b.Close()
		other, _, err := dial(srv, "s-2", nil)
		So(err, ShouldBeNil)
		defer other.Close()

		So(waitFor(func() bool { return hub.ConnectionCount("s-1") == 2 }), ShouldBeTrue)

		Convey("When an event is published on the first session", func() {
			hub.Publish(context.Background(), "s-1", types.SessionEvent{
				Type:         types.EventParticipantsUpdate,
				SessionID:    "s-1",
				Participants: []model.Participant{{UserID: "u1", UserName: "Ada"}},
			})

			Convey("Then both of its clients receive it", func() {
				for _, c := range []*websocket.Conn{a, b} {
					var got types.SessionEvent
					So(c.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
					So(c.ReadJSON(&got), ShouldBeNil)
					So(got.Type, ShouldEqual, types.EventParticipantsUpdate)
					So(got.Participants[0].UserName, ShouldEqual, "Ada")
				}
			})

			Convey("And the other session receives nothing", func() {
				So(other.SetReadDeadline(time.Now().Add(100*time.Millisecond)), ShouldBeNil)
				_, _, err := other.ReadMessage()
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When a client disconnects", func() {
			So(a.Close(), ShouldBeNil)

			Convey("Then it is removed from the session", func() {
				So(waitFor(func() bool { return hub.ConnectionCount("s-1") == 1 }), ShouldBeTrue)
			})
		})
	})
}

func TestHub_AllowedOrigins(t *testing.T) {
	Convey("Given a hub restricted to one origin", t, func() {
		hub := ws.NewHub(ws.WithAllowedOrigins("https://app.example"))
		srv := newServer(hub)
		defer srv.Close()

		Convey("When a foreign origin connects", func() {
			_, resp, err := dial(srv, "s-1", http.Header{"Origin": {"https://evil.example"}})

			Convey("Then the upgrade is refused", func() {
				So(err, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When the allowed origin connects", func() {
			c, _, err := dial(srv, "s-1", http.Header{"Origin": {"https://app.example"}})
			So(err, ShouldBeNil)
			defer c.Close()
			So(waitFor(func() bool { return hub.ConnectionCount("s-1") == 1 }), ShouldBeTrue)
		})
	})
}
