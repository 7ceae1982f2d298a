package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/protocol"
)

type fakeStore struct {
	err      error
	inserted []protocol.Notification
}

func (s *fakeStore) Insert(ctx context.Context, userID string, n protocol.Notification) (protocol.Notification, error) {
	if s.err != nil {
		return protocol.Notification{}, s.err
	}
	if n.ID == "" {
		n.ID = "stored-id"
	}
	s.inserted = append(s.inserted, n)
	return n, nil
}

type publishCall struct {
	userID string
	frame  protocol.ServerFrame
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	calls []publishCall
}

func (p *fakePublisher) Publish(ctx context.Context, userID string, frame protocol.ServerFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, publishCall{userID, frame})
	return nil
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		body      string
		wantUser  string
		wantFrame protocol.ServerFrame
		wantErr   error
	}{
		{
			name:      "job updated",
			key:       KeyJobUpdated,
			body:      `{"userId":"alice","jobId":"j1","status":"closed","message":"Job closed"}`,
			wantUser:  "alice",
			wantFrame: protocol.JobUpdate{JobID: "j1", Status: "closed", Message: "Job closed"},
		},
		{
			name:      "application updated",
			key:       KeyApplicationUpdated,
			body:      `{"userId":"alice","applicationId":"a1","jobId":"j1","status":"accepted","message":"Offer"}`,
			wantUser:  "alice",
			wantFrame: protocol.ApplicationUpdate{ApplicationID: "a1", JobID: "j1", Status: "accepted", Message: "Offer"},
		},
		{
			name:      "message created",
			key:       KeyMessageCreated,
			body:      `{"userId":"bob","from":"recruiter","message":"Hi"}`,
			wantUser:  "bob",
			wantFrame: protocol.DirectMessage{From: "recruiter", Message: "Hi"},
		},
		{
			name:     "notification created",
			key:      KeyNotificationCreated,
			body:     `{"userId":"bob","notification":{"type":"success","message":"Applied"}}`,
			wantUser: "bob",
			wantFrame: protocol.NotificationFrame{Notification: protocol.Notification{
				Type: protocol.LevelSuccess, Message: "Applied",
			}},
		},
		{
			name:    "unknown key",
			key:     "user.registered",
			body:    `{}`,
			wantErr: ErrUnknownEvent,
		},
		{
			name:    "missing user",
			key:     KeyJobUpdated,
			body:    `{"jobId":"j1"}`,
			wantErr: ErrInvalidEvent,
		},
		{
			name:    "malformed body",
			key:     KeyMessageCreated,
			body:    `{`,
			wantErr: ErrInvalidEvent,
		},
		{
			name:    "empty notification",
			key:     KeyNotificationCreated,
			body:    `{"userId":"bob","notification":{}}`,
			wantErr: ErrInvalidEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, frame, err := Translate(tt.key, []byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user)
			assert.Equal(t, tt.wantFrame, frame)
		})
	}
}

func TestRouter_NotificationPersistedBeforePublish(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	r := NewRouter(store, pub, nil)

	frame, err := r.Handle(context.Background(), KeyNotificationCreated,
		[]byte(`{"userId":"alice","notification":{"type":"info","message":"New job match","read":true}}`))
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.False(t, store.inserted[0].Read, "new notifications are always unread")

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "alice", pub.calls[0].userID)
	nf := pub.calls[0].frame.(protocol.NotificationFrame)
	assert.Equal(t, "stored-id", nf.Notification.ID)
	assert.Equal(t, frame, pub.calls[0].frame)
}

func TestRouter_StoreFailureSkipsPublish(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	pub := &fakePublisher{}
	r := NewRouter(store, pub, nil)

	_, err := r.Handle(context.Background(), KeyNotificationCreated,
		[]byte(`{"userId":"alice","notification":{"message":"x"}}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidEvent)
	assert.Empty(t, pub.calls)
}

func TestRouter_PushFailureAfterInsertIsNotRetried(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("redis down")}
	r := NewRouter(store, pub, nil)

	frame, err := r.Handle(context.Background(), KeyNotificationCreated,
		[]byte(`{"userId":"alice","notification":{"type":"info","message":"Interview booked"}}`))
	require.NoError(t, err, "a stored notification must not be redelivered")

	require.Len(t, store.inserted, 1)
	nf, ok := frame.(protocol.NotificationFrame)
	require.True(t, ok)
	assert.Equal(t, "stored-id", nf.Notification.ID)
}

func TestConsumer_PushFailureAfterInsertAcks(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("redis down")}
	r := NewRouter(store, pub, nil)
	c := NewConsumer(config.AMQPConfig{}, r.Handle, nil)

	acker := &fakeAcker{}
	c.process(context.Background(), amqp.Delivery{
		Acknowledger: acker,
		RoutingKey:   KeyNotificationCreated,
		Body:         []byte(`{"userId":"alice","notification":{"message":"Offer received"}}`),
	})

	assert.True(t, acker.acked)
	assert.False(t, acker.nacked)
	assert.Len(t, store.inserted, 1)
}

func TestRouter_TransientFramesNotStored(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	r := NewRouter(store, pub, nil)

	_, err := r.Handle(context.Background(), KeyJobUpdated,
		[]byte(`{"userId":"alice","jobId":"j1","status":"open","message":"Reopened"}`))
	require.NoError(t, err)
	assert.Empty(t, store.inserted)
	assert.Len(t, pub.calls, 1)
}

// fakeAcker records acknowledgements for a delivery.
type fakeAcker struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func TestConsumer_Process(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantAck     bool
		wantRequeue bool
	}{
		{"success", nil, true, false},
		{"unknown event", ErrUnknownEvent, true, false},
		{"invalid event", ErrInvalidEvent, true, false},
		{"transient failure", errors.New("db down"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := func(ctx context.Context, key string, body []byte) (protocol.ServerFrame, error) {
				return nil, tt.err
			}
			c := NewConsumer(config.AMQPConfig{}, handler, nil)

			acker := &fakeAcker{}
			c.process(context.Background(), amqp.Delivery{
				Acknowledger: acker,
				RoutingKey:   KeyJobUpdated,
				Body:         []byte(`{}`),
			})

			assert.Equal(t, tt.wantAck, acker.acked)
			assert.Equal(t, !tt.wantAck, acker.nacked)
			assert.Equal(t, tt.wantRequeue, acker.requeue)
		})
	}
}

func TestPublishHandler(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	router := NewRouter(store, pub, nil)

	mux := http.NewServeMux()
	h := PublishHandler(router.Handle, "secret", nil)
	mux.Handle("/api/notifications", h)
	mux.Handle("/api/events/{key}", h)

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do("POST", "/api/notifications", "secret", `{"userId":"alice","notification":{"message":"Saved search match"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var frame struct {
		Type         string                `json:"type"`
		Notification protocol.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, "notification", frame.Type)
	assert.Equal(t, "stored-id", frame.Notification.ID)

	rec = do("POST", "/api/events/job.updated", "secret", `{"userId":"alice","jobId":"j1","status":"closed","message":"Closed"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, pub.calls, 2)

	assert.Equal(t, http.StatusUnauthorized, do("POST", "/api/notifications", "wrong", `{}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do("POST", "/api/notifications", "", `{}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do("GET", "/api/notifications", "secret", "").Code)
	assert.Equal(t, http.StatusNotFound, do("POST", "/api/events/user.registered", "secret", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("POST", "/api/notifications", "secret", `{"notification":{"message":"x"}}`).Code)

	pub.err = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, do("POST", "/api/events/message.created", "secret", `{"userId":"a","from":"b","message":"c"}`).Code)
}

func TestPublishHandler_DisabledWithoutToken(t *testing.T) {
	h := PublishHandler(func(context.Context, string, []byte) (protocol.ServerFrame, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}, "", nil)

	req := httptest.NewRequest("POST", "/api/notifications", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
