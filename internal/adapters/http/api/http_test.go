package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/storyrank/internal/adapters/http/api"
	"github.com/okian/storyrank/internal/adapters/http/auth"
	eventqueue "github.com/okian/storyrank/internal/adapters/mq/queue"
	"github.com/okian/storyrank/internal/adapters/ws"
	service "github.com/okian/storyrank/internal/app"
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

type client struct {
	t      *httptest.Server
	tenant string
	user   string
}

func (c client) do(method, path string, body any) (*http.Response, []byte) {
	var buf bytes.Buffer
	if body != nil {
		So(json.NewEncoder(&buf).Encode(body), ShouldBeNil)
	}
	req, err := http.NewRequest(method, c.t.URL+path, &buf)
	So(err, ShouldBeNil)
	if c.tenant != "" {
		req.Header.Set(auth.HeaderTenant, c.tenant)
	}
	if c.user != "" {
		req.Header.Set(auth.HeaderUser, c.user)
	}
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	So(err, ShouldBeNil)
	return resp, out.Bytes()
}

func newTestServer(hub *ws.Hub) (*httptest.Server, *service.Service) {
	ids := 0
	svc := service.New(
		service.WithWorkerCount(1),
		service.WithQueueSize(16),
		service.WithIDGenerator(func() string { ids++; return fmt.Sprintf("id-%d", ids) }),
		service.WithPublisher(hub),
	)
	mux := http.NewServeMux()
	api.NewServer(svc, auth.New(""), hub).Register(context.Background(), mux)
	return httptest.NewServer(mux), svc
}

func TestServer_Stories(t *testing.T) {
	Convey("Given a running API in dev auth mode", t, func() {
		srv, _ := newTestServer(ws.NewHub())
		defer srv.Close()
		c := client{t: srv, tenant: "acme", user: "u1"}

		Convey("When stories are created", func() {
			resp, body := c.do(http.MethodPost, "/stories", map[string]any{"titles": []string{"Billing: refund", "export"}})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			var created struct {
				Inserted int           `json:"inserted"`
				Stories  []model.Story `json:"stories"`
			}
			So(json.Unmarshal(body, &created), ShouldBeNil)
			So(created.Inserted, ShouldEqual, 2)
			So(created.Stories[0].Category, ShouldEqual, "Billing")

			Convey("Then they can be listed and fetched", func() {
				resp, body := c.do(http.MethodGet, "/stories?limit=1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var page struct {
					Stories    []model.Story `json:"stories"`
					NextCursor string        `json:"next_cursor"`
				}
				So(json.Unmarshal(body, &page), ShouldBeNil)
				So(page.Stories, ShouldHaveLength, 1)
				So(page.NextCursor, ShouldNotBeEmpty)

				resp, _ = c.do(http.MethodGet, "/stories/id-1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})

			Convey("And another tenant cannot see them", func() {
				other := client{t: srv, tenant: "globex"}
				resp, _ := other.do(http.MethodGet, "/stories/id-1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the tenant header is missing", func() {
			anon := client{t: srv}
			resp, body := anon.do(http.MethodGet, "/stories", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(string(body), ShouldContainSubstring, "unauthorized")
		})

		Convey("When the method does not match", func() {
			resp, _ := c.do(http.MethodDelete, "/stories", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the body is not JSON", func() {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/stories", strings.NewReader("{"))
			So(err, ShouldBeNil)
			req.Header.Set(auth.HeaderTenant, "acme")
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Ratings(t *testing.T) {
	Convey("Given three stories", t, func() {
		srv, svc := newTestServer(ws.NewHub())
		defer srv.Close()
		c := client{t: srv, tenant: "acme", user: "u1"}
		resp, _ := c.do(http.MethodPost, "/stories", map[string]any{"titles": []string{"a", "b", "c"}})
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)

		Convey("When a comparison is applied synchronously", func() {
			req := map[string]any{
				"comparison_id": "c-1", "metric": "impact",
				"left_story_id": "id-1", "right_story_id": "id-2", "winner_story_id": "id-2",
			}
			resp, body := c.do(http.MethodPost, "/elo/compare?sync=true", req)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `"status":"applied"`)

			Convey("Then a replay is acknowledged as a duplicate", func() {
				resp, body := c.do(http.MethodPost, "/elo/compare?sync=true", req)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, `"duplicate":true`)
			})

			Convey("And the leaderboard and rank follow", func() {
				resp, body := c.do(http.MethodGet, "/leaderboard?metric=impact&limit=2", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var entries []types.Entry
				So(json.Unmarshal(body, &entries), ShouldBeNil)
				So(entries[0].StoryID, ShouldEqual, "id-2")
				So(entries[0].Rating, ShouldEqual, 1216)

				resp, body = c.do(http.MethodGet, "/rank/impact/id-1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var entry types.Entry
				So(json.Unmarshal(body, &entry), ShouldBeNil)
				So(entry.Rating, ShouldEqual, 1184)
			})
		})

		Convey("When a comparison is queued before the workers start", func() {
			resp, _ := c.do(http.MethodPost, "/elo/compare", map[string]any{
				"metric": "impact", "left_story_id": "id-1", "right_story_id": "id-2", "winner_story_id": "id-1",
			})
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When a comparison is queued on a started service", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			resp, body := c.do(http.MethodPost, "/elo/compare", map[string]any{
				"metric": "risk", "left_story_id": "id-1", "right_story_id": "id-2", "winner_story_id": "id-1",
			})
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			So(string(body), ShouldContainSubstring, `"status":"accepted"`)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When the winner is not in the pair", func() {
			resp, _ := c.do(http.MethodPost, "/elo/compare", map[string]any{
				"metric": "impact", "left_story_id": "id-1", "right_story_id": "id-2", "winner_story_id": "id-3",
			})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the metric is unknown", func() {
			resp, _ := c.do(http.MethodGet, "/leaderboard?metric=speed", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a batch is ranked", func() {
			resp, body := c.do(http.MethodPost, "/elo/rank", map[string]any{
				"metric": "visibility", "ordered_story_ids": []string{"id-2", "id-3", "id-1"},
			})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var out struct {
				UpdatedCount int                `json:"updated_count"`
				Ratings      map[string]float64 `json:"ratings"`
			}
			So(json.Unmarshal(body, &out), ShouldBeNil)
			So(out.UpdatedCount, ShouldEqual, 3)
			So(out.Ratings["id-2"], ShouldEqual, 1250)
		})

		Convey("When a ranked story does not exist", func() {
			resp, _ := c.do(http.MethodPost, "/elo/rank", map[string]any{
				"metric": "visibility", "ordered_story_ids": []string{"id-1", "ghost"},
			})
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When slider values are posted", func() {
			resp, body := c.do(http.MethodPost, "/elo/slider", map[string]any{
				"metric":  "risk",
				"updates": []map[string]any{{"story_id": "id-1", "new_rating": 1300.4}, {"story_id": "ghost", "new_rating": 1}},
			})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `"updated":1`)
		})

		Convey("When the chart is requested", func() {
			resp, body := c.do(http.MethodGet, "/graph", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var points []types.GraphPoint
			So(json.Unmarshal(body, &points), ShouldBeNil)
			So(points, ShouldHaveLength, 3)
		})
	})
}

func TestServer_Sessions(t *testing.T) {
	Convey("Given a session over two stories with a websocket listener", t, func() {
		hub := ws.NewHub()
		srv, _ := newTestServer(hub)
		defer srv.Close()
		host := client{t: srv, tenant: "acme", user: "host"}
		resp, _ := host.do(http.MethodPost, "/stories", map[string]any{"titles": []string{"a", "b"}})
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)

		resp, body := host.do(http.MethodPost, "/sessions", map[string]any{"metric": "impact", "story_ids": []string{"id-1", "id-2"}})
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		var sess model.Session
		So(json.Unmarshal(body, &sess), ShouldBeNil)

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sess.ID + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{auth.HeaderTenant: {"acme"}})
		So(err, ShouldBeNil)
		defer conn.Close()
		deadline := time.Now().Add(2 * time.Second)
		for hub.ConnectionCount(sess.ID) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		Convey("When participants join, rate and the consensus is applied", func() {
			alice := client{t: srv, tenant: "acme", user: "alice"}
			bob := client{t: srv, tenant: "acme", user: "bob"}
			resp, _ := alice.do(http.MethodPost, "/sessions/"+sess.ID+"/join", map[string]any{"user_name": "Alice"})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var ev types.SessionEvent
			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			So(conn.ReadJSON(&ev), ShouldBeNil)
			So(ev.Type, ShouldEqual, types.EventParticipantsUpdate)

			resp, _ = alice.do(http.MethodPost, "/sessions/"+sess.ID+"/ratings", map[string]any{"ratings": map[string]float64{"id-1": 1400}})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			resp, _ = bob.do(http.MethodPost, "/sessions/"+sess.ID+"/ratings", map[string]any{"ratings": map[string]float64{"id-1": 1500}})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp, body := host.do(http.MethodGet, "/sessions/"+sess.ID+"/results", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var results types.SessionResults
			So(json.Unmarshal(body, &results), ShouldBeNil)
			So(results.Aggregates[0].Consensus, ShouldEqual, 1450)
			So(results.AllCompleted, ShouldBeTrue)

			resp, _ = host.do(http.MethodPost, "/sessions/"+sess.ID+"/apply", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			Convey("Then the story carries the consensus and the session is closed", func() {
				resp, body := host.do(http.MethodGet, "/rank/impact/id-1", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var entry types.Entry
				So(json.Unmarshal(body, &entry), ShouldBeNil)
				So(entry.Rating, ShouldEqual, 1450)

				resp, _ = bob.do(http.MethodPost, "/sessions/"+sess.ID+"/ratings", map[string]any{"ratings": map[string]float64{"id-1": 1}})
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			})

			Convey("And the listener received the results event last", func() {
				last := ev
				for last.Type != types.EventResults {
					So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
					So(conn.ReadJSON(&last), ShouldBeNil)
				}
				So(last.Results, ShouldHaveLength, 2)
			})
		})

		Convey("When a rating names a story outside the session", func() {
			resp, _ := host.do(http.MethodPost, "/sessions/"+sess.ID+"/ratings", map[string]any{"ratings": map[string]float64{"zzz": 1}})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the session does not exist", func() {
			resp, _ := host.do(http.MethodGet, "/sessions/nope/results", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

type fullQueueDeps struct{}

func (fullQueueDeps) SubmitComparison(context.Context, string, model.Comparison, bool) (service.ComparisonResult, error) {
	return service.ComparisonResult{}, fmt.Errorf("enqueue: %w", eventqueue.ErrFull)
}

func (fullQueueDeps) RankStories(context.Context, string, string, []string) (map[string]float64, error) {
	return nil, fmt.Errorf("store down")
}

func (fullQueueDeps) ApplySliderUpdates(context.Context, string, string, []service.SliderUpdate) (map[string]float64, error) {
	return nil, nil
}

func TestCompareHandler_Errors(t *testing.T) {
	Convey("Given a compare handler whose dependencies fail", t, func() {
		h := api.NewCompareHandler(fullQueueDeps{})

		Convey("When the queue is full", func() {
			rec := httptest.NewRecorder()
			body := `{"metric":"impact","left_story_id":"a","right_story_id":"b","winner_story_id":"a"}`
			h.HandleCompare(rec, httptest.NewRequest(http.MethodPost, "/elo/compare", strings.NewReader(body)))

			Convey("Then the client is told to back off", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(rec.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})

		Convey("When the store fails while ranking", func() {
			rec := httptest.NewRecorder()
			body := `{"metric":"impact","ordered_story_ids":["a","b"]}`
			h.HandleRank(rec, httptest.NewRequest(http.MethodPost, "/elo/rank", strings.NewReader(body)))

			Convey("Then the cause is hidden behind a retry hint", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.Body.String(), ShouldContainSubstring, "failed to update ratings, please try again")
				So(rec.Body.String(), ShouldNotContainSubstring, "store down")
			})
		})
	})
}
