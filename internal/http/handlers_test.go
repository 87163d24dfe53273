package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"memberbot/internal/domain"
	"memberbot/internal/repository"
	"memberbot/internal/service"
)

type mockProcessor struct {
	mu      sync.Mutex
	batches [][]domain.Event
	err     error
}

func (m *mockProcessor) HandleBatch(_ context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, events)
	return m.err
}

type mockAcker struct {
	ids []string
}

func (m *mockAcker) AckCallback(id string) {
	m.ids = append(m.ids, id)
}

type mockMemberGetter struct {
	members map[int64]domain.Member
	err     error
}

func (m *mockMemberGetter) GetByID(_ context.Context, id int64) (domain.Member, error) {
	if m.err != nil {
		return domain.Member{}, m.err
	}
	member, ok := m.members[id]
	if !ok {
		return domain.Member{}, repository.ErrNotFound
	}
	return member, nil
}

func newTestRouter(proc EventProcessor, acker CallbackAcker, getter memberGetter, opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	return NewRouter(logger, NewWebhookHandler(logger, proc, acker), NewMemberHandler(logger, getter), opts)
}

func TestWebhookLINE_ClassifiesBatch(t *testing.T) {
	proc := &mockProcessor{err: errors.New("one event failed")}
	r := newTestRouter(proc, nil, &mockMemberGetter{}, RouterOptions{})

	body := `{"destination":"D","events":[
		{"type":"follow","webhookEventId":"E1","replyToken":"r1","source":{"type":"user","userId":"U1"}},
		{"type":"message","webhookEventId":"E2","replyToken":"r2","source":{"type":"user","userId":"U2"},"message":{"id":"m1","type":"text","text":"0912345678"}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even when processing fails, got %d", rec.Code)
	}
	if len(proc.batches) != 1 || len(proc.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 events, got %+v", proc.batches)
	}
	if ev := proc.batches[0][1]; ev.Kind != domain.EventText || ev.UserID != "U2" || ev.Text != "0912345678" {
		t.Fatalf("unexpected classified event: %+v", ev)
	}
}

func TestWebhookLINE_RejectsInvalidJSON(t *testing.T) {
	proc := &mockProcessor{}
	r := newTestRouter(proc, nil, &mockMemberGetter{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(proc.batches) != 0 {
		t.Fatalf("expected no processing for invalid payload")
	}
}

func TestWebhookTelegram_AcksCallback(t *testing.T) {
	proc := &mockProcessor{}
	acker := &mockAcker{}
	r := newTestRouter(proc, acker, &mockMemberGetter{}, RouterOptions{})

	body := `{"update_id":99,"callback_query":{"id":"cb-1","from":{"id":42,"first_name":"Mei"},
		"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}},"data":"action=my_info"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(acker.ids) != 1 || acker.ids[0] != "cb-1" {
		t.Fatalf("expected callback ack, got %+v", acker.ids)
	}
	ev := proc.batches[0][0]
	if ev.Kind != domain.EventPostback || ev.Action != domain.ActionMyInfo || ev.UserID != "tg:42" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func registeredMember() domain.Member {
	return domain.Member{
		ID:             3,
		ExternalUserID: "U3",
		DisplayName:    "Mei",
		Phone:          "0912345678",
		CardNumber:     "A1B2C3",
		PhotoURL:       "https://cdn.test/p.png",
		QRCodeURL:      "https://cdn.test/qr.png",
		Status:         domain.At(domain.StateRegistered),
	}
}

func TestGetMember(t *testing.T) {
	incomplete := registeredMember()
	incomplete.ID = 4
	incomplete.QRCodeURL = ""
	getter := &mockMemberGetter{members: map[int64]domain.Member{3: registeredMember(), 4: incomplete}}
	r := newTestRouter(&mockProcessor{}, nil, getter, RouterOptions{})

	cases := []struct {
		path string
		code int
	}{
		{"/api/members/3", http.StatusOK},
		{"/api/members/4", http.StatusNotFound},
		{"/api/members/999", http.StatusNotFound},
		{"/api/members/abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.code, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/members/3", nil))
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["display_name"] != "Mei" || got["card_number"] != "A1B2C3" || got["photo_url"] != "https://cdn.test/p.png" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if _, leaked := got["phone"]; leaked {
		t.Fatalf("phone must not be exposed")
	}
}

func TestGetMember_StoreError(t *testing.T) {
	r := newTestRouter(&mockProcessor{}, nil, &mockMemberGetter{err: errors.New("db down")}, RouterOptions{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/members/3", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetMember_RequiresScannerTokenWhenConfigured(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", time.Hour)
	getter := &mockMemberGetter{members: map[int64]domain.Member{3: registeredMember()}}
	r := newTestRouter(&mockProcessor{}, nil, getter, RouterOptions{ScannerJWT: jwtSvc})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/members/3", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	tok, err := jwtSvc.IssueScannerToken("desk")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/members/3", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	healthy := true
	r := newTestRouter(&mockProcessor{}, nil, &mockMemberGetter{}, RouterOptions{
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("db down")
		},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGetMember_LogsResolvingScanner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	jwtSvc := service.NewJWTService("secret", time.Hour)
	getter := &mockMemberGetter{members: map[int64]domain.Member{3: registeredMember()}}
	r := NewRouter(logger, NewWebhookHandler(logger, &mockProcessor{}, nil), NewMemberHandler(logger, getter), RouterOptions{ScannerJWT: jwtSvc})

	tok, err := jwtSvc.IssueScannerToken("front-desk")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/members/3", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resolved := logs.FilterMessage("member resolved").All()
	if len(resolved) != 1 {
		t.Fatalf("expected one resolution log, got %d", len(resolved))
	}
	fields := resolved[0].ContextMap()
	if fields["scanner_id"] != "front-desk" || fields["member_id"] != int64(3) {
		t.Fatalf("unexpected log fields: %+v", fields)
	}
}
