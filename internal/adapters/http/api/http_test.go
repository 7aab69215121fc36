package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/facegate/facegate/internal/adapters/dispatch"
	"github.com/facegate/facegate/internal/adapters/encoder"
	"github.com/facegate/facegate/internal/adapters/http/api"
	"github.com/facegate/facegate/internal/adapters/hub"
	"github.com/facegate/facegate/internal/adapters/registry"
	service "github.com/facegate/facegate/internal/app"
	"github.com/facegate/facegate/internal/domain/attend"
	"github.com/facegate/facegate/internal/domain/model"
)

// fakeDeps implements api.Dependencies with canned results.
type fakeDeps struct {
	mu sync.Mutex

	enrollRes    service.EnrollResult
	enrollErr    error
	enrolled     []string
	recognizeRes []model.MatchResult
	recognizeErr error
	realtimeRes  service.RealtimeResult

	students map[string]registry.Student
	today    []attend.Record
	history  []attend.Record

	sessions map[string]hub.Session
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		students: make(map[string]registry.Student),
		sessions: make(map[string]hub.Session),
	}
}

func (f *fakeDeps) Enroll(ctx context.Context, studentID string, image []byte) (service.EnrollResult, error) {
	f.mu.Lock()
	f.enrolled = append(f.enrolled, studentID)
	f.mu.Unlock()
	if f.enrollErr != nil {
		return service.EnrollResult{}, f.enrollErr
	}
	res := f.enrollRes
	res.StudentID = studentID
	return res, nil
}

func (f *fakeDeps) Recognize(ctx context.Context, image []byte) ([]model.MatchResult, model.FrameInfo, error) {
	if f.recognizeErr != nil {
		return nil, model.FrameInfo{}, f.recognizeErr
	}
	return f.recognizeRes, model.FrameInfo{W: 640, H: 480}, nil
}

func (f *fakeDeps) RecognizeRealtime(ctx context.Context, image []byte, minConf float64, sendUnknown bool) (service.RealtimeResult, error) {
	if f.recognizeErr != nil {
		return service.RealtimeResult{}, f.recognizeErr
	}
	return f.realtimeRes, nil
}

func (f *fakeDeps) UpsertStudent(ctx context.Context, st registry.Student) (registry.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st.ID == "" {
		return registry.Student{}, registry.ErrEmptyID
	}
	st.CreatedAt = time.Now().Unix()
	f.students[st.ID] = st
	return st, nil
}

func (f *fakeDeps) GetStudent(ctx context.Context, id string) (registry.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.students[id]
	if !ok {
		return registry.Student{}, fmt.Errorf("student %q: %w", id, registry.ErrNotFound)
	}
	return st, nil
}

func (f *fakeDeps) ListStudents(ctx context.Context, q string, limit, offset int) ([]registry.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]registry.Student, 0, len(f.students))
	for _, st := range f.students {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeDeps) AttendanceToday(ctx context.Context) []attend.Record {
	return f.today
}

func (f *fakeDeps) AttendanceForStudent(ctx context.Context, id string, days int) []attend.Record {
	return f.history
}

func (f *fakeDeps) Subscribe(s hub.Session) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("sub-%d", len(f.sessions)+1)
	f.sessions[id] = s
	return id
}

func (f *fakeDeps) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

func (f *fakeDeps) Tolerance() float64 { return 0.45 }

func (f *fakeDeps) GetStats(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{"started": true, "tolerance": 0.45}
}

func newTestServer(deps api.Dependencies) *httptest.Server {
	return httptest.NewServer(api.NewServer(deps).Router(context.Background()))
}

func multipartImage(fields map[string]string, fileField, filename string, data []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, _ := mw.CreateFormFile(fileField, filename)
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestEnrollEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFakeDeps()
		deps.enrollRes = service.EnrollResult{FacesFound: 1, Saved: 1, Total: 1}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When a valid enrollment is posted", func() {
			body, ct := multipartImage(map[string]string{"student_id": "s001"}, "image", "face.jpg", []byte("jpeg"))
			resp, err := http.Post(srv.URL+"/enroll", ct, body)
			So(err, ShouldBeNil)

			Convey("Then the enrollment result is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["student_id"], ShouldEqual, "s001")
				So(out["saved"], ShouldEqual, 1)
			})
		})

		Convey("When the student id is missing", func() {
			body, ct := multipartImage(nil, "image", "face.jpg", []byte("jpeg"))
			resp, err := http.Post(srv.URL+"/enroll", ct, body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the image cannot be decoded upstream", func() {
			deps.enrollErr = encoder.ErrInvalidImage
			body, ct := multipartImage(map[string]string{"student_id": "s001"}, "image", "face.jpg", []byte("junk"))
			resp, err := http.Post(srv.URL+"/enroll", ct, body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then a client error is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the encoder sidecar is down", func() {
			deps.enrollErr = encoder.ErrUnavailable
			body, ct := multipartImage(map[string]string{"student_id": "s001"}, "image", "face.jpg", []byte("jpeg"))
			resp, err := http.Post(srv.URL+"/enroll", ct, body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then a bad-gateway error is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadGateway)
			})
		})
	})
}

func TestRecognizeEndpoints(t *testing.T) {
	Convey("Given the API server with one known face", t, func() {
		deps := newFakeDeps()
		dist := 0.2
		deps.recognizeRes = []model.MatchResult{{Label: "s001", Distance: &dist}}
		deps.realtimeRes = service.RealtimeResult{
			Results:        []model.MatchResult{{Label: "s001", Distance: &dist}},
			Dispatch:       []service.DispatchEntry{{Label: "s001", Report: dispatch.Report{Status: dispatch.StatusSent}}},
			WebhookEnabled: true,
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When a frame is posted to /recognize", func() {
			resp, err := http.Post(srv.URL+"/recognize", "application/octet-stream", strings.NewReader("jpeg"))
			So(err, ShouldBeNil)

			Convey("Then results and frame info are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				results := out["results"].([]any)
				So(results, ShouldHaveLength, 1)
				frame := out["frame_info"].(map[string]any)
				So(frame["w"], ShouldEqual, 640)
			})
		})

		Convey("When an empty body is posted", func() {
			resp, err := http.Post(srv.URL+"/recognize", "application/octet-stream", strings.NewReader(""))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When realtime is called with a bad min_conf", func() {
			resp, err := http.Post(srv.URL+"/recognize/realtime?min_conf=potato", "application/octet-stream", strings.NewReader("jpeg"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When realtime succeeds", func() {
			resp, err := http.Post(srv.URL+"/recognize/realtime?send_unknown=true", "application/octet-stream", strings.NewReader("jpeg"))
			So(err, ShouldBeNil)

			Convey("Then the realtime shape is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["webhook_enabled"], ShouldEqual, true)

				entries := out["dispatch"].([]any)
				So(entries, ShouldHaveLength, 1)
				entry := entries[0].(map[string]any)
				So(entry["label"], ShouldEqual, "s001")
				report := entry["report"].(map[string]any)
				So(report["status"], ShouldEqual, dispatch.StatusSent)
			})
		})
	})
}

func TestStudentEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFakeDeps()
		deps.enrollRes = service.EnrollResult{FacesFound: 1, Saved: 1, Total: 1}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When a student is created without an image", func() {
			body, ct := multipartImage(map[string]string{
				"student_id": "s001",
				"full_name":  "Ada Lovelace",
			}, "", "", nil)
			resp, err := http.Post(srv.URL+"/students", ct, body)
			So(err, ShouldBeNil)

			Convey("Then the record is returned as created", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				out := decodeBody(t, resp)
				student := out["student"].(map[string]any)
				So(student["id"], ShouldEqual, "s001")
				So(out["enroll"], ShouldBeNil)
			})
		})

		Convey("When a student is created with enroll_after_upload", func() {
			body, ct := multipartImage(map[string]string{
				"student_id":          "s002",
				"full_name":           "Alan Turing",
				"enroll_after_upload": "true",
			}, "image", "face.jpg", []byte("jpeg"))
			resp, err := http.Post(srv.URL+"/students", ct, body)
			So(err, ShouldBeNil)

			Convey("Then the enrollment ran as part of the request", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				out := decodeBody(t, resp)
				So(out["enroll"], ShouldNotBeNil)
				So(deps.enrolled, ShouldContain, "s002")
			})
		})

		Convey("When fetching a stored student", func() {
			_, err := deps.UpsertStudent(context.Background(), registry.Student{ID: "s003", FullName: "Grace Hopper"})
			So(err, ShouldBeNil)

			resp, err := http.Get(srv.URL + "/students/s003")
			So(err, ShouldBeNil)

			Convey("Then the record comes back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["full_name"], ShouldEqual, "Grace Hopper")
			})
		})

		Convey("When fetching a missing student", func() {
			resp, err := http.Get(srv.URL + "/students/ghost")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then 404 is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When listing students", func() {
			_, err := deps.UpsertStudent(context.Background(), registry.Student{ID: "s004"})
			So(err, ShouldBeNil)

			resp, err := http.Get(srv.URL + "/students")
			So(err, ShouldBeNil)

			Convey("Then the collection shape is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["count"], ShouldEqual, 1)
			})
		})
	})
}

func TestAttendanceEndpoints(t *testing.T) {
	Convey("Given the API server with attendance records", t, func() {
		deps := newFakeDeps()
		deps.today = []attend.Record{{StudentID: "s001", Date: "2026-08-31", Hits: 1}}
		deps.history = []attend.Record{
			{StudentID: "s001", Date: "2026-08-31", Hits: 1},
			{StudentID: "s001", Date: "2026-08-30", Hits: 2},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When today's attendance is requested", func() {
			resp, err := http.Get(srv.URL + "/attendance/today")
			So(err, ShouldBeNil)

			Convey("Then the records are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["count"], ShouldEqual, 1)
			})
		})

		Convey("When a student's history is requested", func() {
			resp, err := http.Get(srv.URL + "/attendance/students/s001?days=2")
			So(err, ShouldBeNil)

			Convey("Then the history shape is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["student_id"], ShouldEqual, "s001")
				So(out["days"], ShouldEqual, 2)
				So(out["count"], ShouldEqual, 2)
			})
		})
	})
}

func TestHealthAndConfigEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When /healthz is requested", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)

			Convey("Then it reports ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["status"], ShouldEqual, "ok")
			})
		})

		Convey("When /config is requested", func() {
			resp, err := http.Get(srv.URL + "/config")
			So(err, ShouldBeNil)

			Convey("Then the runtime stats are exposed", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["started"], ShouldEqual, true)
			})
		})

		Convey("When /metrics is requested", func() {
			resp, err := http.Get(srv.URL + "/metrics")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then Prometheus output is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				body, _ := io.ReadAll(resp.Body)
				So(string(body), ShouldContainSubstring, "facegate")
			})
		})

		Convey("When the mock webhook receives a payload", func() {
			resp, err := http.Post(srv.URL+"/mock/webhook", "application/json",
				strings.NewReader(`{"event":"attendance.recognized"}`))
			So(err, ShouldBeNil)

			Convey("Then it acknowledges", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				out := decodeBody(t, resp)
				So(out["ok"], ShouldEqual, true)
			})
		})
	})
}

func TestWebsocketEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When a client connects to the feed", func() {
			wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/recognitions"
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			if resp != nil {
				defer resp.Body.Close()
			}

			Convey("Then the session is registered on the hub", func() {
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) {
					deps.mu.Lock()
					n := len(deps.sessions)
					deps.mu.Unlock()
					if n == 1 {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				deps.mu.Lock()
				So(deps.sessions, ShouldHaveLength, 1)
				deps.mu.Unlock()

				Convey("And a broadcast reaches the client", func() {
					deps.mu.Lock()
					var sess hub.Session
					for _, s := range deps.sessions {
						sess = s
					}
					deps.mu.Unlock()

					So(sess.Send(context.Background(), []byte(`{"type":"recognized"}`)), ShouldBeNil)

					_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
					_, msg, err := conn.ReadMessage()
					So(err, ShouldBeNil)
					So(string(msg), ShouldContainSubstring, "recognized")
				})

				Convey("And closing the client unregisters the session", func() {
					So(conn.Close(), ShouldBeNil)
					deadline := time.Now().Add(2 * time.Second)
					for time.Now().Before(deadline) {
						deps.mu.Lock()
						n := len(deps.sessions)
						deps.mu.Unlock()
						if n == 0 {
							break
						}
						time.Sleep(5 * time.Millisecond)
					}
					deps.mu.Lock()
					So(deps.sessions, ShouldBeEmpty)
					deps.mu.Unlock()
				})
			})

			_ = conn.Close()
		})
	})
}
