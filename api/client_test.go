package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-checkin/application"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", "secret", time.Second)
}

func TestFetchApplication(t *testing.T) {
	var gotPath, gotRequestID string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-ID")
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"id":981,"application_id":"SB-1","schedule":{"schedule_id":77,"attendance":1}}}`)
	})

	rec, err := client.FetchApplication(context.Background(), "  SB-1 \n")
	require.NoError(t, err)

	assert.Equal(t, "/api/frontend/v1/application-barcode/SB-1", gotPath)
	_, err = uuid.Parse(gotRequestID)
	assert.NoError(t, err, "request id is a uuid")

	assert.Equal(t, "SB-1", rec.ApplicationID.String())
	assert.Equal(t, application.Present, rec.Attendance())
}

func TestFetchApplicationNotFound(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"NullData", `{"data":null}`},
		{"MissingData", `{"message":"ok"}`},
		{"FalseData", `{"data":false}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tc.body)
			})
			_, err := client.FetchApplication(context.Background(), "X")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFetchApplicationEmptyCode(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := client.FetchApplication(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAPIError(t *testing.T) {
	t.Run("WithMessage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"message":"Invalid barcode"}`)
		})
		_, err := client.FetchApplication(context.Background(), "bad")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.Equal(t, "Invalid barcode", apiErr.Message)
		assert.Equal(t, "api: status 422: Invalid barcode", err.Error())
	})

	t.Run("WithoutMessage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "<html>bad gateway</html>")
		})
		_, err := client.FetchApplication(context.Background(), "x")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Bad Gateway", apiErr.Message)
	})
}

func TestUpdateAttendance(t *testing.T) {
	var gotPath string
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"message":"updated"}`)
	})

	require.NoError(t, client.UpdateAttendance(context.Background(), "981", "77", true))
	assert.Equal(t, "/api/admin/v1/applications/981/updateAttendanceByToken", gotPath)
	assert.Equal(t, map[string]any{
		"schedule_id": float64(77),
		"is_present":  float64(1),
		"token":       "secret",
	}, body)

	require.NoError(t, client.UpdateAttendance(context.Background(), "981", "slot-a", false))
	assert.Equal(t, "slot-a", body["schedule_id"])
	assert.Equal(t, float64(0), body["is_present"])
}

func TestUploadPassport(t *testing.T) {
	var (
		gotFile     string
		gotFilename string
		gotType     string
		gotUser     string
		gotToken    string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/frontend/v1/upload-passport-photo", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		f, hdr, err := r.FormFile("passport_copy")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		gotFile = string(data)
		gotFilename = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotUser = r.FormValue("user_id")
		gotToken = r.FormValue("token")
		io.WriteString(w, `{"message":"uploaded"}`)
	})

	err := client.UploadPassport(context.Background(), "4412", "", strings.NewReader("jpegdata"))
	require.NoError(t, err)

	assert.Equal(t, "jpegdata", gotFile)
	assert.True(t, strings.HasPrefix(gotFilename, "passport_"))
	assert.True(t, strings.HasSuffix(gotFilename, ".jpg"))
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "4412", gotUser)
	assert.Equal(t, "secret", gotToken)
}

func TestRequestCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{}}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchApplication(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestScheduleFor(t *testing.T) {
	rec := &application.Record{
		ID:            application.V("981"),
		ApplicationID: application.V("SB-1"),
		Schedule:      &application.Schedule{ScheduleID: application.V("77")},
	}
	appID, scheduleID, err := ScheduleFor(rec)
	require.NoError(t, err)
	assert.Equal(t, "981", appID)
	assert.Equal(t, "77", scheduleID)

	rec.ID = application.Null()
	appID, _, err = ScheduleFor(rec)
	require.NoError(t, err)
	assert.Equal(t, "SB-1", appID)

	_, _, err = ScheduleFor(&application.Record{ID: application.V("1")})
	assert.Error(t, err)

	_, _, err = ScheduleFor(nil)
	assert.Error(t, err)
}
