package encoder_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facegate/facegate/internal/adapters/encoder"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewHTTPEncoder(t *testing.T) {
	Convey("Given encoder URLs", t, func() {
		Convey("When the URL is valid", func() {
			e, err := encoder.NewHTTPEncoder("http://detector:8500")
			So(err, ShouldBeNil)
			So(e, ShouldNotBeNil)
		})

		Convey("When the URL is empty the default is used", func() {
			e, err := encoder.NewHTTPEncoder("")
			So(err, ShouldBeNil)
			So(e, ShouldNotBeNil)
		})

		Convey("When the scheme is not http(s)", func() {
			_, err := encoder.NewHTTPEncoder("ftp://detector")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestHTTPEncoderDetect(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sidecar returning two faces", t, func() {
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"frame": {"w": 640, "h": 480},
				"faces": [
					{"box": {"top": 1, "right": 2, "bottom": 3, "left": 4}, "embedding": [0.1, 0.2]},
					{"box": {"top": 5, "right": 6, "bottom": 7, "left": 8}, "embedding": [0.3, 0.4]}
				]
			}`))
		}))
		defer srv.Close()

		e, err := encoder.NewHTTPEncoder(srv.URL)
		So(err, ShouldBeNil)

		Convey("When a frame is posted", func() {
			faces, frame, err := e.Detect(ctx, []byte("jpegbytes"))

			Convey("Then the detections decode into domain types", func() {
				So(err, ShouldBeNil)
				So(string(gotBody), ShouldEqual, "jpegbytes")
				So(frame.W, ShouldEqual, 640)
				So(frame.H, ShouldEqual, 480)
				So(faces, ShouldHaveLength, 2)
				So(faces[0].Box.Left, ShouldEqual, 4)
				So(faces[0].Vector[0], ShouldEqual, 0.1)
				So(faces[1].Vector[1], ShouldEqual, 0.4)
			})
		})
	})

	Convey("Given a sidecar rejecting the frame", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "cannot decode image", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		e, err := encoder.NewHTTPEncoder(srv.URL)
		So(err, ShouldBeNil)

		Convey("When a frame is posted", func() {
			_, _, err := e.Detect(ctx, []byte("garbage"))

			Convey("Then the error is an invalid-image error", func() {
				So(err, ShouldWrap, encoder.ErrInvalidImage)
			})
		})
	})

	Convey("Given a sidecar failing internally", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		e, err := encoder.NewHTTPEncoder(srv.URL)
		So(err, ShouldBeNil)

		Convey("When a frame is posted", func() {
			_, _, err := e.Detect(ctx, []byte("jpegbytes"))

			Convey("Then the error marks the encoder unavailable", func() {
				So(err, ShouldWrap, encoder.ErrUnavailable)
			})
		})
	})

	Convey("Given an encoder with no sidecar listening", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		e, err := encoder.NewHTTPEncoder(srv.URL)
		So(err, ShouldBeNil)

		Convey("When a frame is posted", func() {
			_, _, err := e.Detect(ctx, []byte("jpegbytes"))

			Convey("Then the transport failure maps to unavailable", func() {
				So(err, ShouldWrap, encoder.ErrUnavailable)
			})
		})
	})

	Convey("Given an empty frame", t, func() {
		e, err := encoder.NewHTTPEncoder("http://localhost:1")
		So(err, ShouldBeNil)

		Convey("When detect is called", func() {
			_, _, err := e.Detect(ctx, nil)

			Convey("Then it fails fast without a network call", func() {
				So(err, ShouldWrap, encoder.ErrInvalidImage)
			})
		})
	})
}
