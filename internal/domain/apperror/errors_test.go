package apperror_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/okian/leaderboard/internal/domain/apperror"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given errors of every kind", t, func() {
		v := apperror.Validation("app.add_user", "invalid input", "username: required")
		nf := apperror.NotFound("app.get_user", "user 9 not found")
		st := apperror.Storage("app.top_n", context.DeadlineExceeded)

		Convey("Then errors.Is matches the sentinel of the same kind only", func() {
			So(errors.Is(v, apperror.ErrValidation), ShouldBeTrue)
			So(errors.Is(v, apperror.ErrNotFound), ShouldBeFalse)
			So(errors.Is(nf, apperror.ErrNotFound), ShouldBeTrue)
			So(errors.Is(st, apperror.ErrStorage), ShouldBeTrue)
		})

		Convey("Then the cause stays reachable", func() {
			So(errors.Is(st, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("Then the HTTP status follows the kind", func() {
			So(apperror.HTTPStatus(v), ShouldEqual, http.StatusBadRequest)
			So(apperror.HTTPStatus(nf), ShouldEqual, http.StatusNotFound)
			So(apperror.HTTPStatus(st), ShouldEqual, http.StatusInternalServerError)
		})

		Convey("Then the message names op, kind and cause", func() {
			So(st.Error(), ShouldEqual, "app.top_n: storage_error: storage unavailable: context deadline exceeded")
			So(v.Details, ShouldResemble, []string{"username: required"})
		})

		Convey("When wrapped again", func() {
			wrapped := fmt.Errorf("handler: %w", nf)

			Convey("Then KindOf and As still find it", func() {
				So(apperror.KindOf(wrapped), ShouldEqual, apperror.KindNotFound)
				ae, ok := apperror.As(wrapped)
				So(ok, ShouldBeTrue)
				So(ae.Op, ShouldEqual, "app.get_user")
			})
		})
	})
}

func TestKindOfForeignError(t *testing.T) {
	err := errors.New("boom")
	if got := apperror.KindOf(err); got != apperror.KindStorage {
		t.Errorf("KindOf(foreign) = %q, want %q", got, apperror.KindStorage)
	}
	if got := apperror.HTTPStatus(err); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(foreign) = %d", got)
	}
	if _, ok := apperror.As(err); ok {
		t.Error("As(foreign) should fail")
	}
}
