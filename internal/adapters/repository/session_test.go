package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a session over two stories", t, func() {
		store := repository.NewMemorySessionStore()
		So(store.Create(ctx, model.Session{
			ID: "sess-1", TenantID: "t1", Metric: rating.Impact,
			StoryIDs: []string{"a", "b"}, Status: model.SessionInProgress, StartedAt: now,
		}), ShouldBeNil)

		Convey("When creating it again", func() {
			err := store.Create(ctx, model.Session{ID: "sess-1", TenantID: "t1"})
			So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
		})

		Convey("When another tenant reads it", func() {
			_, err := store.Get(ctx, "t2", "sess-1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a participant joins twice", func() {
			_, err := store.Join(ctx, "t1", "sess-1", model.Participant{UserID: "u1", UserName: "Ann"})
			So(err, ShouldBeNil)
			sess, err := store.Join(ctx, "t1", "sess-1", model.Participant{UserID: "u1", UserName: "Annie"})
			So(err, ShouldBeNil)

			Convey("Then they are listed once with the latest name", func() {
				So(sess.Participants, ShouldHaveLength, 1)
				So(sess.Participants[0].UserName, ShouldEqual, "Annie")
				So(sess.Completed(), ShouldBeFalse)
			})
		})

		Convey("When a participant submits without joining", func() {
			sess, err := store.Submit(ctx, "t1", model.Submission{
				SessionID: "sess-1", UserID: "u2", Ratings: map[string]float64{"a": 1300}, SubmittedAt: now,
			})
			So(err, ShouldBeNil)

			Convey("Then they are added as completed", func() {
				So(sess.Participants, ShouldHaveLength, 1)
				So(sess.Participants[0].UserName, ShouldEqual, "Unknown")
				So(sess.Completed(), ShouldBeTrue)
			})

			Convey("And a resubmission replaces the first", func() {
				_, err := store.Submit(ctx, "t1", model.Submission{
					SessionID: "sess-1", UserID: "u2", Ratings: map[string]float64{"b": 900}, SubmittedAt: now.Add(time.Second),
				})
				So(err, ShouldBeNil)
				subs, err := store.Submissions(ctx, "t1", "sess-1")
				So(err, ShouldBeNil)
				So(subs, ShouldHaveLength, 1)
				So(subs[0].Ratings, ShouldResemble, map[string]float64{"b": 900})
			})
		})

		Convey("When a submission names a story outside the session", func() {
			_, err := store.Submit(ctx, "t1", model.Submission{
				SessionID: "sess-1", UserID: "u1", Ratings: map[string]float64{"zzz": 1},
			})
			So(errors.Is(err, repository.ErrUnknownStory), ShouldBeTrue)
		})

		Convey("When the session finishes", func() {
			So(store.Active(ctx), ShouldEqual, 1)
			sess, err := store.SetStatus(ctx, "t1", "sess-1", model.SessionFinished, now)
			So(err, ShouldBeNil)
			So(sess.FinishedAt, ShouldNotBeNil)
			So(store.Active(ctx), ShouldEqual, 0)

			Convey("Then it accepts no more changes", func() {
				_, err := store.Join(ctx, "t1", "sess-1", model.Participant{UserID: "u3"})
				So(errors.Is(err, repository.ErrSessionFinished), ShouldBeTrue)
				_, err = store.Submit(ctx, "t1", model.Submission{SessionID: "sess-1", UserID: "u3"})
				So(errors.Is(err, repository.ErrSessionFinished), ShouldBeTrue)
				_, err = store.SetStatus(ctx, "t1", "sess-1", model.SessionStarted, now)
				So(errors.Is(err, repository.ErrSessionFinished), ShouldBeTrue)
			})
		})
	})
}
