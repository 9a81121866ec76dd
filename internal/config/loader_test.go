package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/leaderboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		// Point at a file that does not exist so a stray .env never leaks in.
		_ = os.Setenv("LEADERBOARD_ENV_FILE", "/non/existent/.env")
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.RefreshPolicy, convey.ShouldEqual, config.RefreshLazy)
				convey.So(cfg.NeighborRadius, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LEADERBOARD_ADDR", ":9090")
			_ = os.Setenv("LEADERBOARD_REFRESH_POLICY", "eager")
			_ = os.Setenv("LEADERBOARD_NEIGHBOR_RADIUS", "3")
			_ = os.Setenv("LEADERBOARD_STORAGE_TIMEOUT_MS", "250")
			_ = os.Setenv("LEADERBOARD_DB_AUTO_MIGRATE", "false")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RefreshPolicy, convey.ShouldEqual, config.RefreshEager)
				convey.So(cfg.NeighborRadius, convey.ShouldEqual, 3)
				convey.So(cfg.StorageTimeoutMS, convey.ShouldEqual, 250)
				convey.So(cfg.DBAutoMigrate, convey.ShouldBeFalse)
				convey.So(cfg.MaxTopLimit, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
max_top_limit: 25
log_format: json
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LEADERBOARD_CONFIG", tmpFile)
			_ = os.Setenv("LEADERBOARD_ADDR", ":6060")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")     // env
				convey.So(cfg.MaxTopLimit, convey.ShouldEqual, 25)   // file
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json") // file
			})
		})

		convey.Convey("When a .env file is present", func() {
			envFile := createTempFile("leaderboard-*.env", "LEADERBOARD_MAX_TOP_LIMIT=40\nLEADERBOARD_ADDR=:5050\n")
			defer func() { _ = os.Remove(envFile) }()
			_ = os.Setenv("LEADERBOARD_ENV_FILE", envFile)
			_ = os.Setenv("LEADERBOARD_ADDR", ":4040")

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values apply without overriding the process env", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxTopLimit, convey.ShouldEqual, 40)
				convey.So(cfg.Addr, convey.ShouldEqual, ":4040")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LEADERBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("LEADERBOARD_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("LEADERBOARD_REFRESH_POLICY", "never")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"LEADERBOARD_CONFIG",
		"LEADERBOARD_ENV_FILE",
		"LEADERBOARD_ADDR",
		"LEADERBOARD_REFRESH_POLICY",
		"LEADERBOARD_NEIGHBOR_RADIUS",
		"LEADERBOARD_STORAGE_TIMEOUT_MS",
		"LEADERBOARD_DB_AUTO_MIGRATE",
		"LEADERBOARD_MAX_TOP_LIMIT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	return createTempFile("leaderboard-config-*.yaml", content)
}

func createTempFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
