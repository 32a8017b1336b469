package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/emberline/flue/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":8089")
			convey.So(cfg.BackendURL, convey.ShouldEqual, "")
			convey.So(cfg.EngineMode, convey.ShouldEqual, config.ModeProxy)
			convey.So(cfg.BackendLabel, convey.ShouldEqual, "local")
			convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheMemory)
			convey.So(cfg.CacheTTLSeconds, convey.ShouldEqual, 60)
			convey.So(cfg.CoalesceRequests, convey.ShouldBeTrue)
			convey.So(cfg.MaxBodyBytes, convey.ShouldEqual, int64(1<<20))
		})

		convey.Convey("Then the TTL helper should reflect the seconds field", func() {
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, 60*time.Second)
		})
	})
}
