package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory CredentialStore with call counters.
type memStore struct {
	doc   Document
	err   error
	loads atomic.Int32
	saves atomic.Int32
}

func (s *memStore) Load() (Document, error) {
	s.loads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	// Copy so the client's mutations don't alias the fixture.
	out := make(Document, len(s.doc))
	for k, v := range s.doc {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(doc Document) error {
	s.saves.Add(1)
	s.doc = doc
	return nil
}

func storeWithToken(expiresAt time.Time) *memStore {
	cred := Credential{
		AccessToken:      "access-token",
		RefreshToken:     "refresh-token",
		ExpiresAt:        float64(expiresAt.UnixMilli()),
		SubscriptionType: "max",
	}
	doc := Document{}
	if err := applyCredential(doc, cred); err != nil {
		panic(err)
	}
	return &memStore{doc: doc}
}

func testClient(store CredentialStore, usageURL, tokenURL string) *Client {
	c := newClient([]CredentialStore{store}, time.Second, zerolog.Nop())
	c.usageURL = usageURL
	c.tokenURL = tokenURL
	c.now = func() time.Time { return testNow }
	return c
}

func usageServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-token" && got != "Bearer new-access-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("anthropic-beta"); got != anthropicBeta {
			t.Errorf("anthropic-beta = %q", got)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const usageBody = `{
	"five_hour": {"utilization": 42.5, "resets_at": "2025-06-18T15:00:00Z"},
	"seven_day": {"utilization": 10.0, "resets_at": "2025-06-23T00:00:00Z"},
	"seven_day_opus": {"utilization": 3.0, "resets_at": ""}
}`

func TestFetchQuotasHappyPath(t *testing.T) {
	srv := usageServer(t, http.StatusOK, usageBody)
	store := storeWithToken(testNow.Add(2 * time.Hour))
	c := testClient(store, srv.URL, "http://unused.invalid")

	got := c.FetchQuotas(context.Background())

	if !got.IsValid() {
		t.Fatal("expected valid quotas")
	}
	if got.FiveHour == nil || got.FiveHour.Utilization != 42.5 {
		t.Errorf("FiveHour = %+v", got.FiveHour)
	}
	wantReset := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)
	if got.FiveHour.ResetsAt == nil || !got.FiveHour.ResetsAt.Equal(wantReset) {
		t.Errorf("FiveHour.ResetsAt = %v, want %v", got.FiveHour.ResetsAt, wantReset)
	}
	if got.SevenDayOpus == nil || got.SevenDayOpus.ResetsAt != nil {
		t.Errorf("SevenDayOpus = %+v, want utilization with nil reset", got.SevenDayOpus)
	}
	if got.SevenDaySonnet != nil {
		t.Errorf("SevenDaySonnet = %+v, want nil for absent bucket", got.SevenDaySonnet)
	}
	if got.SubscriptionType != "max" {
		t.Errorf("SubscriptionType = %q", got.SubscriptionType)
	}
	if !got.FetchedAt.Equal(testNow) {
		t.Errorf("FetchedAt = %v", got.FetchedAt)
	}
}

func TestFetchQuotasNoRefreshWhenTokenFresh(t *testing.T) {
	var refreshed atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshed.Add(1)
	}))
	defer tokenSrv.Close()
	srv := usageServer(t, http.StatusOK, usageBody)

	// Just outside the 5-minute buffer.
	store := storeWithToken(testNow.Add(refreshBuffer + time.Second))
	c := testClient(store, srv.URL, tokenSrv.URL)

	if got := c.FetchQuotas(context.Background()); !got.IsValid() {
		t.Fatal("expected valid quotas")
	}
	if refreshed.Load() != 0 {
		t.Error("token refreshed despite fresh expiry")
	}
}

func TestFetchQuotasRefreshesExpiringToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if req["grant_type"] != "refresh_token" || req["refresh_token"] != "refresh-token" {
			t.Errorf("refresh request = %v", req)
		}
		if req["client_id"] != oauthClientID || req["scope"] != oauthScopes {
			t.Errorf("oauth identity = %v", req)
		}
		fmt.Fprint(w, `{"access_token":"new-access-token","refresh_token":"new-refresh-token","expires_in":3600}`)
	}))
	defer tokenSrv.Close()
	srv := usageServer(t, http.StatusOK, usageBody)

	// Inside the buffer: expires in one minute.
	store := storeWithToken(testNow.Add(time.Minute))
	c := testClient(store, srv.URL, tokenSrv.URL)

	if got := c.FetchQuotas(context.Background()); !got.IsValid() {
		t.Fatal("expected valid quotas after refresh")
	}

	if store.saves.Load() == 0 {
		t.Fatal("refreshed credential not persisted")
	}
	cred, ok := parseDocument(store.doc)
	if !ok {
		t.Fatal("persisted document unparseable")
	}
	if cred.AccessToken != "new-access-token" || cred.RefreshToken != "new-refresh-token" {
		t.Errorf("persisted credential = %+v", cred)
	}
	wantExpiry := float64(testNow.UnixMilli()) + 3600*1000
	if cred.ExpiresAt != wantExpiry {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, wantExpiry)
	}
}

func TestRefreshPreservesUnknownDocumentKeys(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"new-access-token","expires_in":3600}`)
	}))
	defer tokenSrv.Close()
	srv := usageServer(t, http.StatusOK, usageBody)

	store := storeWithToken(testNow.Add(time.Minute))
	store.doc["someOtherTool"] = json.RawMessage(`{"opaque":true}`)
	c := testClient(store, srv.URL, tokenSrv.URL)

	c.FetchQuotas(context.Background())

	if string(store.doc["someOtherTool"]) != `{"opaque":true}` {
		t.Errorf("sibling key rewritten: %s", store.doc["someOtherTool"])
	}
}

func TestFetchQuotasRefreshFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tokenSrv.Close()
	srv := usageServer(t, http.StatusOK, usageBody)

	store := storeWithToken(testNow.Add(time.Minute))
	c := testClient(store, srv.URL, tokenSrv.URL)

	got := c.FetchQuotas(context.Background())
	if got.IsValid() {
		t.Fatal("expected empty quotas after refresh failure")
	}

	// The cleared token forces a store reload on the next call.
	before := store.loads.Load()
	c.FetchQuotas(context.Background())
	if store.loads.Load() == before {
		t.Error("credentials not reloaded after refresh failure")
	}
}

func TestFetchQuotasAuthFailureInvalidatesCredential(t *testing.T) {
	srv := usageServer(t, http.StatusUnauthorized, `{}`)
	store := storeWithToken(testNow.Add(2 * time.Hour))
	c := testClient(store, srv.URL, "http://unused.invalid")

	got := c.FetchQuotas(context.Background())
	if got.IsValid() {
		t.Fatal("expected empty quotas on 401")
	}

	before := store.loads.Load()
	c.FetchQuotas(context.Background())
	if store.loads.Load() == before {
		t.Error("credentials not reloaded after auth failure")
	}
}

func TestFetchQuotasServerError(t *testing.T) {
	srv := usageServer(t, http.StatusInternalServerError, `{}`)
	store := storeWithToken(testNow.Add(2 * time.Hour))
	c := testClient(store, srv.URL, "http://unused.invalid")

	if got := c.FetchQuotas(context.Background()); got.IsValid() {
		t.Fatal("expected empty quotas on 500")
	}
}

func TestFetchQuotasNoCredentials(t *testing.T) {
	srv := usageServer(t, http.StatusOK, usageBody)
	store := &memStore{err: errors.New("no such entry")}
	c := testClient(store, srv.URL, "http://unused.invalid")

	got := c.FetchQuotas(context.Background())
	if got.IsValid() {
		t.Fatal("expected empty quotas without credentials")
	}
	if !got.FetchedAt.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("FetchedAt = %v, want epoch", got.FetchedAt)
	}
}

func TestFetchQuotasNoRefreshToken(t *testing.T) {
	srv := usageServer(t, http.StatusOK, usageBody)

	doc := Document{}
	if err := applyCredential(doc, Credential{AccessToken: "access-token"}); err != nil {
		t.Fatal(err)
	}
	store := &memStore{doc: doc}
	c := testClient(store, srv.URL, "http://unused.invalid")

	// ExpiresAt of zero always wants a refresh, but there is no refresh
	// token to do it with.
	if got := c.FetchQuotas(context.Background()); got.IsValid() {
		t.Fatal("expected empty quotas")
	}
}

func TestParseResetTime(t *testing.T) {
	if parseResetTime("") != nil {
		t.Error("empty string should yield nil")
	}
	if parseResetTime("not a time") != nil {
		t.Error("garbage should yield nil")
	}
	got := parseResetTime("2025-06-18T15:00:00.123Z")
	if got == nil || got.Nanosecond() != 123_000_000 {
		t.Errorf("fractional timestamp = %v", got)
	}
}
