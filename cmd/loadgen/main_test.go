package main

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the loadgen command", t, func() {
		cmd := newRootCmd()

		convey.Convey("Then its flags carry the defaults", func() {
			for _, name := range []string{"url", "users", "updates", "top", "radius", "samples", "workers", "seed"} {
				convey.So(cmd.Flags().Lookup(name), convey.ShouldNotBeNil)
			}
			convey.So(cmd.Flags().Lookup("url").DefValue, convey.ShouldEqual, "http://localhost:8080")
		})

		convey.Convey("When the configuration is invalid", func() {
			cmd.SetArgs([]string{"--users", "0", "--url", "http://127.0.0.1:1"})
			err := cmd.Execute()

			convey.Convey("Then it fails before sending traffic", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "users must be positive")
			})
		})
	})
}
