package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/lifecycle"
	"atelier/internal/logging"
	"atelier/internal/migrate"
	"atelier/internal/notify"
	"atelier/internal/review"
	"atelier/internal/status"
	"atelier/internal/storage"
)

const testSecret = "test-secret"

type testServer struct {
	srv    *httptest.Server
	engine lifecycle.Engine
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	ws := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: ws})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := storage.NewLocal(ws + "/artifacts")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	cfg := config.Default()
	log := logging.Discard()
	engine := lifecycle.New(conn, cfg, store, notify.Noop{}, log)
	intake := review.New(conn, cfg, store, notify.Noop{}, log)
	handler, err := New(Config{
		Engine: engine,
		Intake: intake,
		Auth:   AuthConfig{JWTSecret: testSecret, Logger: log},
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return testServer{srv: srv, engine: engine}
}

func mintToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return res
}

func createBody(bounties map[string]int64) CreateAtelierRequest {
	offers := make([]OfferRequest, 0, len(bounties))
	for reviewer, bounty := range bounties {
		offers = append(offers, OfferRequest{ReviewerID: reviewer, Bounty: bounty})
	}
	return CreateAtelierRequest{
		GameID:      "sc2",
		Title:       "ladder game 12",
		MediaType:   "video/mp4",
		OriginalB64: base64.StdEncoding.EncodeToString([]byte("original bytes")),
		Offers:      offers,
	}
}

func TestHealthNoAuth(t *testing.T) {
	ts := newTestServer(t)
	res, err := http.Get(ts.srv.URL + "/v0/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", res.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	ts := newTestServer(t)
	var envelope map[string]apiErrorBody
	res := doJSON(t, http.MethodGet, ts.srv.URL+"/v0/ledger/balance", "", nil, &envelope)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
	if envelope["error"].Code != "unauthorized" {
		t.Fatalf("error code = %q", envelope["error"].Code)
	}
}

func TestBadTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	res := doJSON(t, http.MethodGet, ts.srv.URL+"/v0/ledger/balance", "not-a-jwt", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestFullReviewFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")
	reviewer := mintToken(t, "reviewer")

	var acct AccountResponse
	res := doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ledger/deposit", uploader, AmountRequest{Amount: 1000}, &acct)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("deposit status = %d", res.StatusCode)
	}
	if acct.Free != 1000 {
		t.Fatalf("free after deposit = %d", acct.Free)
	}

	var created AtelierResponse
	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers", uploader, createBody(map[string]int64{"reviewer": 250}), &created)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", res.StatusCode)
	}
	if created.Status != int(status.InAuction) {
		t.Fatalf("status after create = %s", created.StatusLabel)
	}
	if created.MaxBounty != 250 {
		t.Fatalf("max bounty = %d", created.MaxBounty)
	}

	var cands []CandidateResponse
	doJSON(t, http.MethodGet, ts.srv.URL+"/v0/ateliers/"+created.ID+"/candidates", reviewer, nil, &cands)
	if len(cands) != 1 || cands[0].ReviewerID != "reviewer" {
		t.Fatalf("candidates = %+v", cands)
	}

	var assignedResp AtelierResponse
	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/accept", reviewer, nil, &assignedResp)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d", res.StatusCode)
	}
	if assignedResp.Status != int(status.Assigned) {
		t.Fatalf("status after accept = %s", assignedResp.StatusLabel)
	}

	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/review/start", reviewer, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", res.StatusCode)
	}

	var completed AtelierResponse
	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/review", reviewer, SubmitReviewRequest{
		MediaType: "video/webm",
		ReviewB64: base64.StdEncoding.EncodeToString([]byte("review bytes")),
	}, &completed)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", res.StatusCode)
	}
	if completed.Status != int(status.Complete) {
		t.Fatalf("status after submit = %s", completed.StatusLabel)
	}

	var reviewerAcct AccountResponse
	doJSON(t, http.MethodGet, ts.srv.URL+"/v0/ledger/balance", reviewer, nil, &reviewerAcct)
	if reviewerAcct.Redeemable != 250 {
		t.Fatalf("reviewer redeemable = %d", reviewerAcct.Redeemable)
	}

	var scored AtelierResponse
	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/score", uploader, ScoreRequest{Score: 4.5}, &scored)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("score status = %d", res.StatusCode)
	}
	if scored.Score == nil || *scored.Score != 4.5 {
		t.Fatalf("score = %v", scored.Score)
	}

	var entries []HistoryResponse
	doJSON(t, http.MethodGet, ts.srv.URL+"/v0/history?atelier_id="+created.ID, uploader, nil, &entries)
	types := map[string]bool{}
	for _, e := range entries {
		types[e.Type] = true
	}
	for _, want := range []string{"atelier.created", "offer.accepted", "review.submitted", "escrow.settled", "review.scored"} {
		if !types[want] {
			t.Fatalf("history missing %q, got %v", want, types)
		}
	}
}

func TestCreateInsufficientFundsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")

	var envelope map[string]apiErrorBody
	res := doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers", uploader, createBody(map[string]int64{"reviewer": 250}), &envelope)
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", res.StatusCode)
	}
	if envelope["error"].Code != "insufficient_funds" {
		t.Fatalf("error code = %q", envelope["error"].Code)
	}
}

func TestAcceptConflictOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")
	reviewer := mintToken(t, "reviewer")
	other := mintToken(t, "other")

	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ledger/deposit", uploader, AmountRequest{Amount: 1000}, nil)
	var created AtelierResponse
	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers", uploader, createBody(map[string]int64{"reviewer": 200, "other": 300}), &created)

	res := doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/accept", reviewer, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("first accept status = %d", res.StatusCode)
	}
	var envelope map[string]apiErrorBody
	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/accept", other, nil, &envelope)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second accept status = %d, want 409", res.StatusCode)
	}
	if envelope["error"].Code != "conflict" {
		t.Fatalf("error code = %q", envelope["error"].Code)
	}
}

func TestDeleteRequiresCancelOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")

	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ledger/deposit", uploader, AmountRequest{Amount: 500}, nil)
	var created AtelierResponse
	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers", uploader, createBody(map[string]int64{"reviewer": 100}), &created)

	res := doJSON(t, http.MethodDelete, ts.srv.URL+"/v0/ateliers/"+created.ID, uploader, nil, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("delete while escrowed status = %d, want 409", res.StatusCode)
	}

	res = doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers/"+created.ID+"/cancel", uploader, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", res.StatusCode)
	}
	var deleted AtelierResponse
	res = doJSON(t, http.MethodDelete, ts.srv.URL+"/v0/ateliers/"+created.ID, uploader, nil, &deleted)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete after cancel status = %d", res.StatusCode)
	}
	if deleted.Status != int(status.Deleted) {
		t.Fatalf("status after delete = %s", deleted.StatusLabel)
	}
}

func TestListPaginationOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")
	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ledger/deposit", uploader, AmountRequest{Amount: 10000}, nil)

	for i := 0; i < 5; i++ {
		body := createBody(map[string]int64{"reviewer": 100})
		body.Title = fmt.Sprintf("game %d", i)
		res := doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers", uploader, body, nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create %d status = %d", i, res.StatusCode)
		}
	}

	var page paginatedAteliers
	doJSON(t, http.MethodGet, ts.srv.URL+"/v0/ateliers?limit=2", uploader, nil, &page)
	if len(page.Items) != 2 {
		t.Fatalf("page 1 size = %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	seen := map[string]bool{}
	for _, a := range page.Items {
		seen[a.ID] = true
	}
	cursor := page.NextCursor
	for cursor != "" {
		var next paginatedAteliers
		doJSON(t, http.MethodGet, ts.srv.URL+"/v0/ateliers?limit=2&cursor="+cursor, uploader, nil, &next)
		for _, a := range next.Items {
			if seen[a.ID] {
				t.Fatalf("atelier %s seen twice", a.ID)
			}
			seen[a.ID] = true
		}
		cursor = next.NextCursor
	}
	if len(seen) != 5 {
		t.Fatalf("paginated total = %d, want 5", len(seen))
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")

	var key KeyResponse
	res := doJSON(t, http.MethodPost, ts.srv.URL+"/v0/keys", uploader, CreateKeyRequest{Name: "ci", Key: "s3cret-key"}, &key)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key status = %d", res.StatusCode)
	}
	if key.UserID != "uploader" {
		t.Fatalf("key user = %q", key.UserID)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/v0/ledger/balance", nil)
	req.Header.Set("X-Api-Key", "s3cret-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("balance via api key: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance via api key status = %d", resp.StatusCode)
	}
	var acct AccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acct.UserID != "uploader" {
		t.Fatalf("account user = %q", acct.UserID)
	}

	var keys []KeyResponse
	doJSON(t, http.MethodGet, ts.srv.URL+"/v0/keys", uploader, nil, &keys)
	if len(keys) != 1 {
		t.Fatalf("key count = %d", len(keys))
	}
	res = doJSON(t, http.MethodDelete, ts.srv.URL+"/v0/keys/"+key.ID, uploader, nil, nil)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete key status = %d", res.StatusCode)
	}
}

func TestMarketplaceStatusCounts(t *testing.T) {
	ts := newTestServer(t)
	uploader := mintToken(t, "uploader")
	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ledger/deposit", uploader, AmountRequest{Amount: 1000}, nil)
	doJSON(t, http.MethodPost, ts.srv.URL+"/v0/ateliers", uploader, createBody(map[string]int64{"reviewer": 100}), nil)

	var counts map[string]int
	doJSON(t, http.MethodGet, ts.srv.URL+"/v0/status", uploader, nil, &counts)
	if counts["in_auction"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
