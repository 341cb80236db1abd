package surveyform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/callback-survey/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBody(t *testing.T) {
	body, err := EncodeBody(FormState{Name: "Alice", Phone: "555-0100", CallTime: "after 5pm", MaxAttempts: "3", Notes: "ring twice"})
	require.NoError(t, err)

	assert.Equal(t,
		`{"name":"Alice","phone":"555-0100","call_time":"after 5pm","max_attempts":"3","notes":"ring twice"}`,
		string(body))

	empty, err := EncodeBody(FormState{})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"","phone":"","call_time":"","max_attempts":"","notes":""}`, string(empty))
}

func TestClientSubmit(t *testing.T) {
	t.Run("posts json to submit path", func(t *testing.T) {
		var (
			gotMethod, gotPath, gotType, gotKey string
			gotBody                             map[string]string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
			gotKey = r.Header.Get(utils.IdempotencyKeyHeader)
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotBody)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":"ok","id":1}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL+"/", time.Second)
		res := c.Submit(context.Background(), "form-1", FormState{Name: "Alice", MaxAttempts: "x"})

		assert.Equal(t, OutcomeAccepted, res.Outcome)
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.NoError(t, res.Err)
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, utils.SubmitPath, gotPath)
		assert.Equal(t, "application/json", gotType)
		assert.Equal(t, "form-1", gotKey)
		assert.Equal(t, map[string]string{
			"name": "Alice", "phone": "", "call_time": "", "max_attempts": "x", "notes": "",
		}, gotBody)
	})

	t.Run("omits idempotency key when form id is empty", func(t *testing.T) {
		var present bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, present = r.Header[http.CanonicalHeaderKey(utils.IdempotencyKeyHeader)]
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		res := NewClient(srv.URL, time.Second).Submit(context.Background(), "", FormState{})
		assert.Equal(t, OutcomeAccepted, res.Outcome)
		assert.False(t, present)
	})

	t.Run("page key header only when configured", func(t *testing.T) {
		var keys []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys = append(keys, r.Header.Get(utils.PageKeyHeader))
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		NewClient(srv.URL, time.Second).Submit(context.Background(), "f", FormState{})
		NewClient(srv.URL, time.Second).WithPageKey("secret").Submit(context.Background(), "f", FormState{})
		assert.Equal(t, []string{"", "secret"}, keys)
	})

	t.Run("non-2xx statuses are rejections", func(t *testing.T) {
		for _, code := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError, http.StatusServiceUnavailable} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				_, _ = w.Write([]byte("not json"))
			}))

			res := NewClient(srv.URL, time.Second).Submit(context.Background(), "f", FormState{})
			assert.Equal(t, OutcomeRejected, res.Outcome, "status %d", code)
			assert.Equal(t, code, res.StatusCode)
			assert.NoError(t, res.Err)
			srv.Close()
		}
	})

	t.Run("unreachable backend is a network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		res := NewClient(url, time.Second).Submit(context.Background(), "f", FormState{})
		assert.Equal(t, OutcomeNetworkFailure, res.Outcome)
		assert.Error(t, res.Err)
	})

	t.Run("timeout is a network failure", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		res := NewClient(srv.URL, 50*time.Millisecond).Submit(context.Background(), "f", FormState{})
		assert.Equal(t, OutcomeNetworkFailure, res.Outcome)
	})
}
