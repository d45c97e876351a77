package chart_test

import (
	"testing"
	"time"

	"github.com/okian/storyrank/internal/domain/chart"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func story(id string, impact, effort, risk, vis float64) model.Story {
	s := model.NewStory("t", id, id, time.Now())
	s.Ratings[rating.Impact] = s.Ratings[rating.Impact].WithValue(impact)
	s.Ratings[rating.EstimatedTime] = s.Ratings[rating.EstimatedTime].WithValue(effort)
	s.Ratings[rating.Risk] = s.Ratings[rating.Risk].WithValue(risk)
	s.Ratings[rating.Visibility] = s.Ratings[rating.Visibility].WithValue(vis)
	return s
}

func TestPlot(t *testing.T) {
	Convey("Given no stories", t, func() {
		Convey("Then the plot is empty", func() {
			So(chart.Plot(nil), ShouldBeEmpty)
		})
	})

	Convey("Given a single story", t, func() {
		points := chart.Plot([]model.Story{story("a", 1300, 1100, 1250, 1200)})

		Convey("Then every metric sits on the midpoint", func() {
			So(points, ShouldHaveLength, 1)
			So(points[0].Impact, ShouldEqual, 5)
			So(points[0].Y, ShouldEqual, 5)
			So(points[0].X, ShouldEqual, 5)
			So(points[0].HighVisibility, ShouldBeTrue)
		})
	})

	Convey("Given three stories", t, func() {
		points := chart.Plot([]model.Story{
			story("low", 1000, 1000, 1000, 1000),
			story("mid", 1100, 1100, 1100, 1100),
			story("high", 1200, 1200, 1200, 1200),
		})

		Convey("Then values are normalized over the set", func() {
			So(points[0].Impact, ShouldEqual, 0.5)
			So(points[1].Impact, ShouldEqual, 5)
			So(points[2].Impact, ShouldEqual, 9.5)
		})

		Convey("Then x combines effort with half the risk", func() {
			So(points[0].X, ShouldAlmostEqual, 0.5)
			So(points[2].X, ShouldAlmostEqual, 9.5)
		})

		Convey("Then the visibility flag uses the median", func() {
			So(points[0].HighVisibility, ShouldBeFalse)
			So(points[1].HighVisibility, ShouldBeTrue)
			So(points[2].HighVisibility, ShouldBeTrue)
		})
	})

	Convey("Given a story missing a metric", t, func() {
		broken := story("broken", 1, 1, 1, 1)
		delete(broken.Ratings, rating.Risk)
		points := chart.Plot([]model.Story{broken, story("ok", 1200, 1200, 1200, 1200)})

		Convey("Then it is left off the plot", func() {
			So(points, ShouldHaveLength, 1)
			So(points[0].StoryID, ShouldEqual, "ok")
		})
	})
}
