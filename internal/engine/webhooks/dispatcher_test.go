package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replayhub/internal/platform/models"
)

// countingResolver serves webhooks from a map and counts lookups per id.
type countingResolver struct {
	mu       sync.Mutex
	webhooks map[int64]*models.Webhook
	calls    map[int64]int
}

func newCountingResolver(hooks ...*models.Webhook) *countingResolver {
	r := &countingResolver{webhooks: map[int64]*models.Webhook{}, calls: map[int64]int{}}
	for _, h := range hooks {
		r.webhooks[h.WebhookID] = h
	}
	return r
}

func (r *countingResolver) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[id]++
	return r.webhooks[id], nil
}

type capturedRequest struct {
	path string
	auth string
	ct   string
	body string
}

// recordingServer captures every request and answers with handler.
func recordingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedRequest{
			path: r.URL.Path,
			auth: r.Header.Get("Authorization"),
			ct:   r.Header.Get("Content-Type"),
			body: string(body),
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), got...)
	}
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received":true}`))
}

func hook(id int64, endpoint, auth string) *models.Webhook {
	return &models.Webhook{WebhookID: id, TenantID: 1, Endpoint: endpoint, AuthHeader: auth, Type: models.TypeWebhook}
}

func TestDispatcher_ResolvesEachDestinationOnce(t *testing.T) {
	srv, requests := recordingServer(t, ok)
	resolver := newCountingResolver(hook(1, srv.URL+"/a", ""), hook(2, srv.URL+"/b", ""))
	d := NewDispatcher(resolver, 4, time.Second)

	d.DeliverBatch(context.Background(), []models.Notification{
		{Destination: 1, Data: json.RawMessage(`{"n":1}`)},
		{Destination: 2, Data: json.RawMessage(`{"n":2}`)},
		{Destination: 1, Data: json.RawMessage(`{"n":3}`)},
		{Destination: 1, Data: json.RawMessage(`{"n":4}`)},
	})

	assert.Equal(t, 1, resolver.calls[1])
	assert.Equal(t, 1, resolver.calls[2])
	assert.Len(t, requests(), 4)
	assert.Equal(t, Stats{Delivered: 4}, d.Stats())
}

func TestDispatcher_PreservesOrderWithinDestination(t *testing.T) {
	srv, requests := recordingServer(t, ok)
	resolver := newCountingResolver(hook(1, srv.URL+"/a", ""))
	d := NewDispatcher(resolver, 4, time.Second)

	var batch []models.Notification
	for _, body := range []string{`1`, `2`, `3`, `4`, `5`} {
		batch = append(batch, models.Notification{Destination: 1, Data: json.RawMessage(body)})
	}
	d.DeliverBatch(context.Background(), batch)

	var bodies []string
	for _, r := range requests() {
		bodies = append(bodies, r.body)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, bodies)
}

func TestDispatcher_UnknownDestinationIsDropped(t *testing.T) {
	srv, requests := recordingServer(t, ok)
	resolver := newCountingResolver(hook(1, srv.URL+"/a", ""))
	d := NewDispatcher(resolver, 2, time.Second)

	require.NotPanics(t, func() {
		d.DeliverBatch(context.Background(), []models.Notification{
			{Destination: 99, Data: json.RawMessage(`{}`)},
			{Destination: 99, Data: json.RawMessage(`{}`)},
			{Destination: 1, Data: json.RawMessage(`{}`)},
		})
	})

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, "/a", got[0].path)
	assert.Equal(t, 1, resolver.calls[99])
	assert.Equal(t, Stats{Delivered: 1, Dropped: 2}, d.Stats())
}

func TestDispatcher_OnlyUnknownDestinationMakesNoCall(t *testing.T) {
	_, requests := recordingServer(t, ok)
	d := NewDispatcher(newCountingResolver(), 2, time.Second)

	d.DeliverBatch(context.Background(), []models.Notification{{Destination: 5, Data: json.RawMessage(`{}`)}})

	assert.Empty(t, requests())
	assert.Equal(t, int64(1), d.Stats().Dropped)
}

func TestDispatcher_AuthorizationHeader(t *testing.T) {
	srv, requests := recordingServer(t, ok)
	resolver := newCountingResolver(hook(1, srv.URL+"/with", "Bearer s3cret"), hook(2, srv.URL+"/without", ""))
	d := NewDispatcher(resolver, 1, time.Second)

	d.DeliverBatch(context.Background(), []models.Notification{
		{Destination: 1, Data: json.RawMessage(`{"a":1}`)},
		{Destination: 2, Data: json.RawMessage(`{"a":2}`)},
	})

	byPath := map[string]capturedRequest{}
	for _, r := range requests() {
		byPath[r.path] = r
	}
	assert.Equal(t, "Bearer s3cret", byPath["/with"].auth)
	assert.Equal(t, "", byPath["/without"].auth)
	assert.Equal(t, "application/json", byPath["/with"].ct)
	assert.JSONEq(t, `{"a":1}`, byPath["/with"].body)
}

func TestDispatcher_NonSuccessIsSwallowed(t *testing.T) {
	srv, requests := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	resolver := newCountingResolver(hook(1, srv.URL, ""))
	d := NewDispatcher(resolver, 1, time.Second)

	require.NotPanics(t, func() {
		d.DeliverBatch(context.Background(), []models.Notification{
			{Destination: 1, Data: json.RawMessage(`{}`)},
			{Destination: 1, Data: json.RawMessage(`{}`)},
		})
	})

	// no retry: one request per event
	assert.Len(t, requests(), 2)
	assert.Equal(t, Stats{Failed: 2}, d.Stats())
}

func TestDispatcher_TransportErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(ok))
	endpoint := srv.URL
	srv.Close()

	d := NewDispatcher(newCountingResolver(hook(1, endpoint, "")), 1, time.Second)
	d.DeliverBatch(context.Background(), []models.Notification{{Destination: 1, Data: json.RawMessage(`{}`)}})

	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_SkipsNonHTTPIntegrations(t *testing.T) {
	srv, requests := recordingServer(t, ok)
	slack := hook(1, srv.URL, "")
	slack.Type = models.TypeSlack
	d := NewDispatcher(newCountingResolver(slack), 1, time.Second)

	d.DeliverBatch(context.Background(), []models.Notification{{Destination: 1, Data: json.RawMessage(`{}`)}})

	assert.Empty(t, requests())
	assert.Equal(t, Stats{}, d.Stats())
}

func TestDeliver_ResponseParsing(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    interface{}
		wantErr bool
	}{
		{"json body", http.StatusOK, `{"ok":true}`, map[string]interface{}{"ok": true}, false},
		{"text body", http.StatusOK, `thanks`, "thanks", false},
		{"created", http.StatusCreated, `[1,2]`, []interface{}{float64(1), float64(2)}, false},
		{"empty body", http.StatusNoContent, ``, "", false},
		{"redirect status", http.StatusMultipleChoices, `nope`, nil, true},
		{"client error", http.StatusNotFound, `missing`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := NewDispatcher(newCountingResolver(), 1, time.Second)
			delivery, err := d.Deliver(context.Background(), hook(1, srv.URL, ""), json.RawMessage(`{}`))

			if tt.wantErr {
				var derr *DeliveryError
				require.ErrorAs(t, err, &derr)
				assert.Equal(t, tt.status, derr.StatusCode)
				assert.Equal(t, tt.body, derr.Body)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, delivery.StatusCode)
			assert.Equal(t, tt.want, delivery.Response)
		})
	}
}

func TestDispatcher_BadEndpointDoesNotBlockSiblings(t *testing.T) {
	srv, requests := recordingServer(t, ok)
	bad := hook(1, "://not a url", "")
	good := hook(2, srv.URL+"/good", "")
	d := NewDispatcher(newCountingResolver(bad, good), 2, time.Second)

	d.DeliverBatch(context.Background(), []models.Notification{
		{Destination: 1, Data: json.RawMessage(`{}`)},
		{Destination: 2, Data: json.RawMessage(`{}`)},
	})

	require.Len(t, requests(), 1)
	assert.Equal(t, Stats{Delivered: 1, Failed: 1}, d.Stats())
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("transport exploded")
}

func TestDispatcher_PanicIsRecovered(t *testing.T) {
	d := NewDispatcher(newCountingResolver(hook(1, "http://a.example", ""), hook(2, "http://b.example", "")), 2, time.Second)
	d.client = &http.Client{Transport: panicTransport{}}

	require.NotPanics(t, func() {
		d.DeliverBatch(context.Background(), []models.Notification{
			{Destination: 1, Data: json.RawMessage(`{}`)},
			{Destination: 2, Data: json.RawMessage(`{}`)},
			{Destination: 2, Data: json.RawMessage(`{}`)},
		})
	})
	assert.Equal(t, Stats{Failed: 3}, d.Stats())
}
