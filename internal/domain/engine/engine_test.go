package engine_test

import (
	"regexp"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/emberline/flue/internal/domain/catalog"
	"github.com/emberline/flue/internal/domain/engine"
	"github.com/emberline/flue/internal/domain/model"
)

const testVersion = "2025.08"

func fixedClock() time.Time {
	return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
}

func newTestEngine(opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{engine.WithClock(fixedClock)}, opts...)
	return engine.New(catalog.Builtin(), opts...)
}

func bubbleRow(res *engine.Result, activityID string) (engine.BubbleRow, bool) {
	for _, row := range res.Figures.Bubble.Rows {
		if row.ActivityID == activityID {
			return row, true
		}
	}
	return engine.BubbleRow{}, false
}

func stackedRow(res *engine.Result, category string) (engine.StackedRow, bool) {
	for _, row := range res.Figures.Stacked.Rows {
		if row.Category == category {
			return row, true
		}
	}
	return engine.StackedRow{}, false
}

func TestComputeBaseline(t *testing.T) {
	Convey("Given an engine over the builtin catalog", t, func() {
		eng := newTestEngine()
		req := model.ComputeRequest{ProfileID: "profile-1", Overrides: map[string]float64{}}

		Convey("When computing with no overrides", func() {
			res, err := eng.Compute(req, testVersion)

			Convey("Then it succeeds", func() {
				So(err, ShouldBeNil)
				So(res, ShouldNotBeNil)
			})

			Convey("Then zero-default activities are excluded", func() {
				So(res.Figures.Bubble.Rows, ShouldHaveLength, 12)
				_, found := bubbleRow(res, "FOOD.DIET.VEGETARIAN.WEEK")
				So(found, ShouldBeFalse)
				_, found = bubbleRow(res, "DIGITAL.CLOUD.STORAGE.GB")
				So(found, ShouldBeFalse)
			})

			Convey("Then the car commute figures match the derivation", func() {
				row, found := bubbleRow(res, "TRAVEL.COMMUTE.CAR.WORKDAY")
				So(found, ShouldBeTrue)
				So(row.Mean, ShouldEqual, 673920.00)
				So(row.Low, ShouldNotBeNil)
				So(*row.Low, ShouldEqual, 572832.00)
				So(row.High, ShouldNotBeNil)
				So(*row.High, ShouldEqual, 775008.00)
			})

			Convey("Then activities without their own uncertainty use the default band", func() {
				row, found := bubbleRow(res, "TRAVEL.COMMUTE.RAIL.WORKDAY")
				So(found, ShouldBeTrue)
				So(row.Mean, ShouldEqual, 145600.00)
				So(*row.Low, ShouldEqual, 131040.00)
				So(*row.High, ShouldEqual, 160160.00)
			})

			Convey("Then bubble rows are ordered by descending mean", func() {
				rows := res.Figures.Bubble.Rows
				So(rows[0].ActivityID, ShouldEqual, "FOOD.DIET.OMNIVORE.WEEK")
				So(rows[0].Mean, ShouldEqual, 2496000.00)
				for i := 1; i < len(rows); i++ {
					So(rows[i].Mean, ShouldBeLessThanOrEqualTo, rows[i-1].Mean)
				}
			})

			Convey("Then stacked rows aggregate per category", func() {
				So(res.Figures.Stacked.Rows, ShouldHaveLength, 5)
				travel, found := stackedRow(res, "Travel")
				So(found, ShouldBeTrue)
				So(travel.Mean, ShouldEqual, 1684800.00)
				So(travel.Low, ShouldEqual, 1309568.00)
				So(travel.High, ShouldEqual, 2060032.00)
			})

			Convey("Then stacked rows appear in catalog category order", func() {
				categories := make([]string, 0, len(res.Figures.Stacked.Rows))
				for _, row := range res.Figures.Stacked.Rows {
					categories = append(categories, row.Category)
				}
				So(categories, ShouldResemble, []string{"Travel", "Food", "Home", "Goods", "Digital"})
			})

			Convey("Then the sankey graph has one node per category and activity", func() {
				So(res.Figures.Sankey.Nodes, ShouldHaveLength, 17)
				So(res.Figures.Sankey.Links, ShouldHaveLength, 12)
				So(res.Figures.Sankey.Nodes[0].ID, ShouldEqual, "category:Travel")
				link := res.Figures.Sankey.Links[0]
				So(link.Source, ShouldEqual, "category:Travel")
				So(link.Target, ShouldEqual, "TRAVEL.COMMUTE.CAR.WORKDAY")
				So(link.Mean, ShouldEqual, 673920.00)
			})

			Convey("Then citations are deduplicated in catalog order", func() {
				So(res.Figures.Stacked.CitationKeys, ShouldResemble, []string{
					"SRC.GHG.TRANSPORT",
					"SRC.ICAO.AVIATION",
					"SRC.DIET",
					"SRC.FAO.FOODWASTE",
					"SRC.GRID.INTENSITY",
					"SRC.WATER.HEAT",
					"SRC.LCA.APPAREL",
					"SRC.LCA.ELECTRONICS",
					"SRC.DIGITAL.CARBON",
				})
				So(res.Figures.Bubble.CitationKeys, ShouldResemble, res.Figures.Stacked.CitationKeys)
				So(res.Figures.Sankey.CitationKeys, ShouldResemble, res.Figures.Stacked.CitationKeys)
			})

			Convey("Then references carry one-based ordinals and resolved text", func() {
				So(res.References, ShouldHaveLength, 9)
				for i, ref := range res.References {
					So(ref.Ordinal, ShouldEqual, i+1)
					So(ref.Key, ShouldEqual, res.Figures.Stacked.CitationKeys[i])
					So(ref.Text, ShouldNotBeBlank)
				}
			})

			Convey("Then the manifest echoes the inputs", func() {
				So(res.Manifest.ProfileID, ShouldEqual, "profile-1")
				So(res.Manifest.DatasetVersion, ShouldEqual, testVersion)
				So(res.Manifest.Overrides, ShouldResemble, map[string]float64{})
				So(res.Manifest.GeneratedAt, ShouldEqual, fixedClock())
				So(res.Manifest.SourceKeys, ShouldResemble, res.Figures.Stacked.CitationKeys)
			})
		})
	})
}

func TestComputeOverrides(t *testing.T) {
	Convey("Given an engine over the builtin catalog", t, func() {
		eng := newTestEngine()

		Convey("When a zero-default activity is overridden to a positive quantity", func() {
			req := model.ComputeRequest{
				ProfileID: "profile-1",
				Overrides: map[string]float64{"FOOD.DIET.VEGETARIAN.WEEK": 1},
			}
			res, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then it appears in every figure", func() {
				row, found := bubbleRow(res, "FOOD.DIET.VEGETARIAN.WEEK")
				So(found, ShouldBeTrue)
				So(row.Mean, ShouldEqual, 1508000.00)

				var linked bool
				for _, link := range res.Figures.Sankey.Links {
					if link.Target == "FOOD.DIET.VEGETARIAN.WEEK" {
						linked = true
					}
				}
				So(linked, ShouldBeTrue)

				food, found := stackedRow(res, "Food")
				So(found, ShouldBeTrue)
				So(food.Mean, ShouldEqual, 2691000.00+1508000.00)
			})

			Convey("Then its shared citation key is still listed once", func() {
				var count int
				for _, key := range res.Figures.Stacked.CitationKeys {
					if key == "SRC.DIET" {
						count++
					}
				}
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When an override is negative", func() {
			req := model.ComputeRequest{
				ProfileID: "profile-1",
				Overrides: map[string]float64{"TRAVEL.COMMUTE.CAR.WORKDAY": -5},
			}
			res, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the activity is clamped out entirely", func() {
				_, found := bubbleRow(res, "TRAVEL.COMMUTE.CAR.WORKDAY")
				So(found, ShouldBeFalse)
				So(res.Figures.Bubble.Rows, ShouldHaveLength, 11)
				travel, _ := stackedRow(res, "Travel")
				So(travel.Mean, ShouldEqual, 1684800.00-673920.00)
			})
		})

		Convey("When every activity of a citation is zeroed out", func() {
			req := model.ComputeRequest{
				ProfileID: "profile-1",
				Overrides: map[string]float64{"DIGITAL.STREAMING.VIDEO.HOUR": 0},
			}
			res, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the citation disappears with it", func() {
				So(res.Figures.Stacked.CitationKeys, ShouldNotContain, "SRC.DIGITAL.CARBON")
				So(res.References, ShouldHaveLength, 8)
				_, found := stackedRow(res, "Digital")
				So(found, ShouldBeFalse)
			})
		})

		Convey("When two activities tie on mean emissions", func() {
			// 2 h/week of streaming and 11 GB of storage both derive 5720.
			req := model.ComputeRequest{
				ProfileID: "profile-1",
				Overrides: map[string]float64{
					"DIGITAL.STREAMING.VIDEO.HOUR": 2,
					"DIGITAL.CLOUD.STORAGE.GB":     11,
				},
			}
			res, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then catalog order breaks the tie", func() {
				rows := res.Figures.Bubble.Rows
				So(rows, ShouldHaveLength, 13)
				So(rows[len(rows)-2].ActivityID, ShouldEqual, "DIGITAL.STREAMING.VIDEO.HOUR")
				So(rows[len(rows)-2].Mean, ShouldEqual, 5720.00)
				So(rows[len(rows)-1].ActivityID, ShouldEqual, "DIGITAL.CLOUD.STORAGE.GB")
				So(rows[len(rows)-1].Mean, ShouldEqual, 5720.00)
			})
		})

		Convey("When an override names an unknown activity", func() {
			req := model.ComputeRequest{
				ProfileID: "profile-1",
				Overrides: map[string]float64{"NOT.IN.CATALOG": 40},
			}
			res, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then figures are unchanged but the identity is not", func() {
				So(res.Figures.Bubble.Rows, ShouldHaveLength, 12)
				So(res.Manifest.Overrides, ShouldResemble, map[string]float64{"NOT.IN.CATALOG": 40})

				base, err := eng.Compute(model.ComputeRequest{ProfileID: "profile-1", Overrides: map[string]float64{}}, testVersion)
				So(err, ShouldBeNil)
				So(res.DatasetID, ShouldNotEqual, base.DatasetID)
			})
		})
	})
}

func TestComputeDatasetID(t *testing.T) {
	Convey("Given an engine over the builtin catalog", t, func() {
		eng := newTestEngine()
		req := model.ComputeRequest{ProfileID: "profile-1", Overrides: map[string]float64{}}

		Convey("When computing twice with the same inputs", func() {
			first, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)
			second, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the results are identical", func() {
				So(second, ShouldResemble, first)
			})
		})

		Convey("When inspecting the dataset identifier", func() {
			res, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then it is a version fingerprint and a request digest", func() {
				So(res.DatasetID, ShouldNotBeBlank)
				matched := regexp.MustCompile(`^[0-9a-f]{8}:[0-9a-f]{16}$`).MatchString(res.DatasetID)
				So(matched, ShouldBeTrue)
			})
		})

		Convey("When the dataset version changes", func() {
			before, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)
			after, err := eng.Compute(req, "2025.09")
			So(err, ShouldBeNil)

			Convey("Then both halves of the identifier change", func() {
				So(after.DatasetID, ShouldNotEqual, before.DatasetID)
				So(after.DatasetID[:8], ShouldNotEqual, before.DatasetID[:8])
			})
		})

		Convey("When the profile changes", func() {
			first, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)
			second, err := eng.Compute(model.ComputeRequest{ProfileID: "profile-2", Overrides: map[string]float64{}}, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the digest changes but the fingerprint does not", func() {
				So(second.DatasetID, ShouldNotEqual, first.DatasetID)
				So(second.DatasetID[:8], ShouldEqual, first.DatasetID[:8])
			})
		})

		Convey("When the backend label differs", func() {
			local, err := eng.Compute(req, testVersion)
			So(err, ShouldBeNil)

			proxied := newTestEngine(engine.WithBackendLabel("upstream"))
			remote, err := proxied.Compute(req, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the identifiers diverge", func() {
				So(remote.DatasetID, ShouldNotEqual, local.DatasetID)
			})
		})
	})
}

func TestComputeEmptyCatalog(t *testing.T) {
	Convey("Given an engine over an empty catalog", t, func() {
		eng := engine.New(nil, engine.WithClock(fixedClock))
		req := model.ComputeRequest{ProfileID: "profile-1", Overrides: map[string]float64{}}

		Convey("When computing", func() {
			res, err := eng.Compute(req, testVersion)

			Convey("Then every collection is present and empty", func() {
				So(err, ShouldBeNil)
				So(res.Figures.Stacked.Rows, ShouldBeEmpty)
				So(res.Figures.Bubble.Rows, ShouldBeEmpty)
				So(res.Figures.Sankey.Nodes, ShouldBeEmpty)
				So(res.Figures.Sankey.Links, ShouldBeEmpty)
				So(res.References, ShouldBeEmpty)
				So(res.DatasetID, ShouldNotBeBlank)
			})
		})
	})
}

func TestEngineOptions(t *testing.T) {
	Convey("Given engine options", t, func() {
		synthetic := []catalog.Activity{
			{
				ID:              "TEST.ONE",
				Label:           "Test one",
				Category:        "Test",
				Layer:           "test",
				Factor:          100,
				DefaultQuantity: 1,
				Reference:       "SRC.UNKNOWN",
			},
		}

		Convey("When the default uncertainty is overridden", func() {
			eng := engine.New(synthetic, engine.WithClock(fixedClock), engine.WithDefaultUncertainty(0.5))
			res, err := eng.Compute(model.ComputeRequest{ProfileID: "p"}, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the band widens accordingly", func() {
				row := res.Figures.Bubble.Rows[0]
				So(row.Mean, ShouldEqual, 5200.00)
				So(*row.Low, ShouldEqual, 2600.00)
				So(*row.High, ShouldEqual, 7800.00)
			})
		})

		Convey("When the default uncertainty override is out of range", func() {
			eng := engine.New(synthetic, engine.WithClock(fixedClock), engine.WithDefaultUncertainty(1.5))
			res, err := eng.Compute(model.ComputeRequest{ProfileID: "p"}, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the builtin default applies", func() {
				row := res.Figures.Bubble.Rows[0]
				So(*row.Low, ShouldEqual, 4680.00)
				So(*row.High, ShouldEqual, 5720.00)
			})
		})

		Convey("When a reference key has no catalog text", func() {
			eng := engine.New(synthetic, engine.WithClock(fixedClock))
			res, err := eng.Compute(model.ComputeRequest{ProfileID: "p"}, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the reference survives with empty text", func() {
				So(res.References, ShouldHaveLength, 1)
				So(res.References[0].Key, ShouldEqual, "SRC.UNKNOWN")
				So(res.References[0].Text, ShouldBeBlank)
			})
		})

		Convey("When a nil clock is supplied", func() {
			eng := engine.New(synthetic, engine.WithClock(nil))
			res, err := eng.Compute(model.ComputeRequest{ProfileID: "p"}, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the wall clock stays in place", func() {
				So(res.Manifest.GeneratedAt, ShouldHappenWithin, time.Minute, time.Now().UTC())
			})
		})

		Convey("When a blank backend label is supplied", func() {
			eng := engine.New(synthetic, engine.WithClock(fixedClock), engine.WithBackendLabel(""))
			labeled := engine.New(synthetic, engine.WithClock(fixedClock))

			blank, err := eng.Compute(model.ComputeRequest{ProfileID: "p"}, testVersion)
			So(err, ShouldBeNil)
			kept, err := labeled.Compute(model.ComputeRequest{ProfileID: "p"}, testVersion)
			So(err, ShouldBeNil)

			Convey("Then the default label is retained", func() {
				So(blank.DatasetID, ShouldEqual, kept.DatasetID)
			})
		})
	})
}
