package routes

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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/miyf-books/api/controllers"
	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/cashinhand"
	"github.com/angelmondragon/miyf-books/internal/files"
	"github.com/angelmondragon/miyf-books/internal/receipts"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/internal/transactions"
	"github.com/angelmondragon/miyf-books/internal/users"
	"github.com/angelmondragon/miyf-books/pkg/auth"
	"github.com/angelmondragon/miyf-books/pkg/config"
	"github.com/angelmondragon/miyf-books/pkg/drive"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/metrics"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryDrive struct {
	files map[string]drive.File
	next  int
}

func (m *memoryDrive) Upload(_ context.Context, name, mimeType string, body io.Reader) (drive.File, error) {
	data, _ := io.ReadAll(body)
	m.next++
	id := fmt.Sprintf("drive-%d", m.next)
	f := drive.File{ID: id, Name: name, MimeType: mimeType, Size: int64(len(data)), ViewURL: drive.ViewURL(id), DownloadURL: drive.DownloadURL(id)}
	m.files[id] = f
	return f, nil
}

func (m *memoryDrive) Share(context.Context, string) error { return nil }

func (m *memoryDrive) Get(_ context.Context, id string) (drive.File, error) {
	f, ok := m.files[id]
	if !ok {
		return drive.File{}, drive.ErrNotFound
	}
	return f, nil
}

func (m *memoryDrive) List(context.Context) ([]drive.File, error) {
	out := make([]drive.File, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f)
	}
	return out, nil
}

func (m *memoryDrive) Rename(_ context.Context, id, name string) (drive.File, error) {
	f, ok := m.files[id]
	if !ok {
		return drive.File{}, drive.ErrNotFound
	}
	f.Name = name
	m.files[id] = f
	return f, nil
}

func (m *memoryDrive) Delete(_ context.Context, id string) error {
	if _, ok := m.files[id]; !ok {
		return drive.ErrNotFound
	}
	delete(m.files, id)
	return nil
}

type testApp struct {
	handler http.Handler
	cfg     *config.Config
	drive   *memoryDrive
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "miyf-books", ExpirationMinutes: 60},
	}
	logg := logger.Nop()
	base := repo.NewBase(rowstore.NewMemoryBackend())

	auditRepo, err := auditlog.NewRepository(base)
	require.NoError(t, err)
	auditSvc, err := auditlog.NewService(auditRepo)
	require.NoError(t, err)

	userRepo, err := users.NewRepository(base)
	require.NoError(t, err)
	userSvc, err := users.NewService(userRepo, auditSvc, logg, []string{"root@example.com"})
	require.NoError(t, err)

	txRepo, err := transactions.NewRepository(base, "")
	require.NoError(t, err)
	require.NoError(t, txRepo.Ensure(context.Background()))
	txSvc, err := transactions.NewService(txRepo, auditSvc, nil, logg)
	require.NoError(t, err)

	cashRepo, err := cashinhand.NewRepository(base)
	require.NoError(t, err)
	cashSvc, err := cashinhand.NewService(cashRepo, auditSvc, logg)
	require.NoError(t, err)

	mem := &memoryDrive{files: map[string]drive.File{}}
	fileSvc, err := files.NewService(mem, 10<<20, logg)
	require.NoError(t, err)

	receiptRepo, err := receipts.NewRepository(base)
	require.NoError(t, err)
	receiptSvc, err := receipts.NewService(receiptRepo, txSvc, fileSvc, auditSvc, logg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	handler := NewRouter(
		cfg,
		logg,
		map[string]controllers.Pinger{"store": stubPinger{}},
		reg,
		metrics.NewHTTPMetrics(reg),
		nil,
		userSvc,
		txSvc,
		cashSvc,
		receiptSvc,
		fileSvc,
		auditSvc,
	)
	return testApp{handler: handler, cfg: cfg, drive: mem}
}

func (a testApp) token(t *testing.T, uid, email string) string {
	t.Helper()
	token, err := auth.MintIdentityToken(a.cfg.JWT, time.Now(), auth.IdentityPayload{UID: uid, Email: email})
	require.NoError(t, err)
	return token
}

func (a testApp) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Error.Code
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/health/live", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Miyf-Env"))

	rec = app.do(t, http.MethodGet, "/health/ready", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeData(t, rec)["store"])

	rec = app.do(t, http.MethodGet, "/metrics", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}

func TestAPIRequiresToken(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/api/sheets/read", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
}

func TestTransactionLifecycle(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")
	root := app.token(t, "uid-root", "root@example.com")

	rec := app.do(t, http.MethodPost, "/api/sheets/create", alice, map[string]any{
		"date": "2026-04-05", "type": "Income", "who": "Sunday offering", "amount": 50,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData(t, rec)
	key := created["key"].(string)
	assert.Equal(t, "Pending", created["status"])
	assert.Equal(t, "MIYF", created["account"])
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// basic users cannot approve
	rec = app.do(t, http.MethodPut, "/api/sheets/update-record-status", alice, map[string]any{"key": key, "status": "Approved"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPut, "/api/sheets/update/"+key, alice, map[string]any{"description": "choir"}, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "choir", decodeData(t, rec)["description"])

	// the previous etag is now stale
	rec = app.do(t, http.MethodPut, "/api/sheets/update/"+key, alice, map[string]any{"description": "again"}, map[string]string{"If-Match": etag})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/sheets/update-record-status", root, map[string]any{"key": key, "status": "Approved"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeData(t, rec)
	assert.Equal(t, "Approved", approved["status"])
	assert.Equal(t, "root@example.com", approved["approvedBy"])

	rec = app.do(t, http.MethodGet, "/api/sheets/read?status=Approved", alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = app.do(t, http.MethodGet, "/api/sheets/summary", alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData(t, rec)
	assert.EqualValues(t, 1, summary["approvedCount"])

	// alice only sees her own audit rows; root sees the approval too
	rec = app.do(t, http.MethodGet, "/api/sheets/audit-log", alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, entry := range decodeList(t, rec) {
		assert.Equal(t, "alice@example.com", entry["user"])
	}
	rec = app.do(t, http.MethodGet, "/api/sheets/audit-log", root, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Update Status", decodeList(t, rec)[0]["action"])

	rec = app.do(t, http.MethodDelete, "/api/sheets/delete/"+key, alice, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, http.MethodDelete, "/api/sheets/delete/"+key, root, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/sheets/read/"+key, root, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateValidationErrors(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")

	rec := app.do(t, http.MethodPost, "/api/sheets/create", alice, map[string]any{
		"date": "05/04/2026", "type": "Gift", "who": "x", "amount": -1,
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestCashInHand(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")
	root := app.token(t, "uid-root", "root@example.com")

	rec := app.do(t, http.MethodPost, "/api/sheets/cash-in-hand", alice, map[string]any{"type": "Adjustment", "amount": 10}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/sheets/cash-in-hand", root, map[string]any{"type": "Adjustment", "amount": "100.50"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(t, http.MethodPost, "/api/sheets/cash-in-hand", root, map[string]any{"type": "Transfer", "amount": "-0.50"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/sheets/cash-in-hand", alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", fmt.Sprint(decodeData(t, rec)["balance"]))
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (a testApp) upload(t *testing.T, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/drive/upload", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndReceipts(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")

	rec := app.do(t, http.MethodPost, "/api/sheets/create", alice, map[string]any{
		"date": "2026-04-05", "type": "Expense", "who": "Printer", "amount": 20,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	key := decodeData(t, rec)["key"].(string)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	body, ct := multipartUpload(t, map[string]string{"transactionKey": key, "displayName": "Ink"}, "ink receipt.pdf", pdf)
	rec = app.upload(t, alice, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeData(t, rec)
	assert.True(t, strings.HasPrefix(result["fileName"].(string), key+"_"))
	assert.True(t, strings.HasSuffix(result["fileName"].(string), "_ink_receipt.pdf"))
	receipt := result["receipt"].(map[string]any)
	assert.Equal(t, "Ink", receipt["displayName"])

	rec = app.do(t, http.MethodGet, "/api/sheets/receipts/read?transactionKey="+key, alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeList(t, rec), 1)

	rec = app.do(t, http.MethodPatch, "/api/sheets/receipts/update-display-name", alice, map[string]any{
		"receiptKey": receipt["receiptKey"], "displayName": "Toner",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Toner", decodeData(t, rec)["displayName"])

	rec = app.do(t, http.MethodDelete, "/api/sheets/receipts/delete/"+receipt["receiptKey"].(string), alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, app.drive.files)
}

func TestUploadRejectsOversizedFileWithoutDriveCall(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")

	body, ct := multipartUpload(t, nil, "big.pdf", bytes.Repeat([]byte("a"), 15<<20))
	rec := app.upload(t, alice, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", errorCode(t, rec))
	assert.Empty(t, app.drive.files)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")

	body, ct := multipartUpload(t, nil, "notes.txt", []byte("plain text notes"))
	rec := app.upload(t, alice, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, app.drive.files)
}

func TestUsersRoutes(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "uid-alice", "alice@example.com")
	root := app.token(t, "uid-root", "root@example.com")

	rec := app.do(t, http.MethodGet, "/api/users/me", alice, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeData(t, rec)
	assert.Equal(t, "Basic User", me["role"])
	assert.ElementsMatch(t, []any{"view", "create"}, me["capabilities"])

	rec = app.do(t, http.MethodGet, "/api/users", alice, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPatch, "/api/users/uid-alice/role", root, map[string]any{"role": "admin"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Admin", decodeData(t, rec)["role"])

	rec = app.do(t, http.MethodPatch, "/api/users/uid-alice/role", root, map[string]any{"role": "owner"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/users", root, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)
}

func TestAuditLogPaging(t *testing.T) {
	app := newTestApp(t)
	root := app.token(t, "uid-root", "root@example.com")

	for _, who := range []string{"a", "b", "c"} {
		rec := app.do(t, http.MethodPost, "/api/sheets/create", root, map[string]any{
			"date": "2026-04-05", "type": "Income", "who": who, "amount": 1,
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := app.do(t, http.MethodGet, "/api/sheets/audit-log?limit=2", root, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)
	cursor := rec.Header().Get("X-Next-Cursor")
	require.NotEmpty(t, cursor)

	rec = app.do(t, http.MethodGet, "/api/sheets/audit-log?limit=2&cursor="+cursor, root, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)
	assert.Empty(t, rec.Header().Get("X-Next-Cursor"))

	rec = app.do(t, http.MethodGet, "/api/sheets/audit-log?limit=zero", root, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
