package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/leaderboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestUserOutranks(t *testing.T) {
	convey.Convey("Given two users", t, func() {
		high := model.User{ID: 2, Score: 100}
		low := model.User{ID: 1, Score: 50}

		convey.Convey("Then the higher score outranks regardless of id", func() {
			convey.So(high.Outranks(low), convey.ShouldBeTrue)
			convey.So(low.Outranks(high), convey.ShouldBeFalse)
		})

		convey.Convey("When scores tie", func() {
			a := model.User{ID: 3, Score: 70}
			b := model.User{ID: 4, Score: 70}

			convey.Convey("Then the earlier id comes first", func() {
				convey.So(a.Outranks(b), convey.ShouldBeTrue)
				convey.So(b.Outranks(a), convey.ShouldBeFalse)
				convey.So(a.Outranks(a), convey.ShouldBeFalse)
			})
		})
	})
}

func TestRankedUserJSON(t *testing.T) {
	ru := model.RankedUser{User: model.User{ID: 7, Username: "ana", Score: 30}, Rank: 2}
	raw, err := json.Marshal(ru)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["rank"] != float64(2) || got["username"] != "ana" || got["id"] != float64(7) {
		t.Errorf("unexpected payload %s", raw)
	}
	if _, ok := got["avatar_url"]; ok {
		t.Errorf("empty avatar_url should be omitted: %s", raw)
	}
}
