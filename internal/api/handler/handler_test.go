package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/service"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
	"github.com/hcunanan79/COREcare-access/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult      *dto.TokenResponse
	loginErr         error
	logoutErr        error
	logoutJTI        string
	logoutExp        time.Time
	getCurrentResult *dto.UserResponse
	getCurrentErr    error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Logout(_ context.Context, jti string, exp time.Time) error {
	m.logoutJTI, m.logoutExp = jti, exp
	return m.logoutErr
}
func (m *mockAuthService) GetCurrentUser(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.getCurrentResult, m.getCurrentErr
}

// ── Mock VisitService ──

type mockVisitService struct {
	caller      service.Caller
	visitID     string
	clockOutReq *dto.ClockOutRequest
	mileageReq  *dto.MileageRequest
	visit       *dto.VisitResponse
	visits      []dto.VisitResponse
	total       int64
	comments    []dto.VisitCommentResponse
	err         error
}

func (m *mockVisitService) ClockIn(_ context.Context, caller service.Caller, _ *dto.ClockInRequest) (*dto.VisitResponse, error) {
	m.caller = caller
	return m.visit, m.err
}
func (m *mockVisitService) ClockOut(_ context.Context, caller service.Caller, visitID string, req *dto.ClockOutRequest) (*dto.VisitResponse, error) {
	m.caller, m.visitID, m.clockOutReq = caller, visitID, req
	return m.visit, m.err
}
func (m *mockVisitService) AddMileage(_ context.Context, caller service.Caller, visitID string, req *dto.MileageRequest) (*dto.VisitResponse, error) {
	m.caller, m.visitID, m.mileageReq = caller, visitID, req
	return m.visit, m.err
}
func (m *mockVisitService) GetActive(_ context.Context, caller service.Caller) (*dto.VisitResponse, error) {
	m.caller = caller
	return m.visit, m.err
}
func (m *mockVisitService) GetVisit(_ context.Context, _ service.Caller, visitID string) (*dto.VisitResponse, error) {
	m.visitID = visitID
	return m.visit, m.err
}
func (m *mockVisitService) ListVisits(_ context.Context, _ service.Caller, _ *dto.VisitListRequest) ([]dto.VisitResponse, int64, error) {
	return m.visits, m.total, m.err
}
func (m *mockVisitService) UpdateVisit(_ context.Context, _ service.Caller, visitID string, _ *dto.UpdateVisitRequest) (*dto.VisitResponse, error) {
	m.visitID = visitID
	return m.visit, m.err
}
func (m *mockVisitService) DeleteVisit(_ context.Context, _ service.Caller, visitID string) error {
	m.visitID = visitID
	return m.err
}
func (m *mockVisitService) AddComment(_ context.Context, _ service.Caller, _ string, req *dto.CommentRequest) (*dto.VisitCommentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.VisitCommentResponse{Text: req.Text}, nil
}
func (m *mockVisitService) ListComments(_ context.Context, _ service.Caller, _ string) ([]dto.VisitCommentResponse, error) {
	return m.comments, m.err
}

// ── Mock SummaryService ──

type mockSummaryService struct {
	caregiverID string
	weekStart   string
	result      *dto.WeeklySummaryResponse
	list        []dto.WeeklySummaryResponse
	err         error
}

func (m *mockSummaryService) Recompute(_ context.Context, _ string, _ time.Time) (*dto.WeeklySummaryResponse, error) {
	return m.result, m.err
}
func (m *mockSummaryService) RecomputeRange(_ context.Context, _ string, _, _ time.Time) (int, error) {
	return 0, m.err
}
func (m *mockSummaryService) GetWeekly(_ context.Context, _ service.Caller, caregiverID, weekStart string) (*dto.WeeklySummaryResponse, error) {
	m.caregiverID, m.weekStart = caregiverID, weekStart
	return m.result, m.err
}
func (m *mockSummaryService) ListForCaregiver(_ context.Context, _ service.Caller, caregiverID string) ([]dto.WeeklySummaryResponse, error) {
	m.caregiverID = caregiverID
	return m.list, m.err
}

// ── Mock ShiftService ──

type mockShiftService struct {
	shift *dto.ShiftResponse
	list  []dto.ShiftResponse
	total int64
	err   error
}

func (m *mockShiftService) Create(_ context.Context, _ service.Caller, _ *dto.CreateShiftRequest) (*dto.ShiftResponse, error) {
	return m.shift, m.err
}
func (m *mockShiftService) Update(_ context.Context, _ service.Caller, _ string, _ *dto.UpdateShiftRequest) (*dto.ShiftResponse, error) {
	return m.shift, m.err
}
func (m *mockShiftService) Get(_ context.Context, _ service.Caller, _ string) (*dto.ShiftResponse, error) {
	return m.shift, m.err
}
func (m *mockShiftService) List(_ context.Context, _ service.Caller, _ *dto.ShiftListRequest) ([]dto.ShiftResponse, int64, error) {
	return m.list, m.total, m.err
}
func (m *mockShiftService) ListMine(_ context.Context, _ service.Caller) ([]dto.ShiftResponse, error) {
	return m.list, m.err
}

// ── Mock PayrollService ──

type mockPayrollService struct {
	query    *dto.PayrollQuery
	report   *dto.PayrollReport
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockPayrollService) WeeklyTotal(_ context.Context, _ string, _ service.DateRange) (decimal.Decimal, error) {
	return decimal.Zero, m.err
}
func (m *mockPayrollService) Report(_ context.Context, _ service.Caller, q *dto.PayrollQuery) (*dto.PayrollReport, error) {
	m.query = q
	return m.report, m.err
}
func (m *mockPayrollService) ExportCSV(_ context.Context, _ service.Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error) {
	m.query = q
	return m.buf, m.filename, m.err
}
func (m *mockPayrollService) ExportXLSX(_ context.Context, _ service.Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error) {
	m.query = q
	return m.buf, m.filename, m.err
}

// ── Mock CalendarService ──

type mockCalendarService struct {
	clientID    string
	eventID     string
	imported    string
	items       []dto.ScheduleItem
	feed        []dto.CalendarFeedItem
	conflicts   *dto.ConflictsResponse
	event       *dto.EventResponse
	events      []dto.EventResponse
	attachment  *dto.AttachmentResponse
	attachments []dto.AttachmentResponse
	ics         string
	importRes   *dto.ImportEventsResponse
	err         error
}

func (m *mockCalendarService) GetSchedule(_ context.Context, _ service.Caller, clientID string, _ *dto.ScheduleQuery) ([]dto.ScheduleItem, error) {
	m.clientID = clientID
	return m.items, m.err
}
func (m *mockCalendarService) CalendarFeed(_ context.Context, _ service.Caller, clientID string, _ *dto.DateRangeQuery) ([]dto.CalendarFeedItem, error) {
	m.clientID = clientID
	return m.feed, m.err
}
func (m *mockCalendarService) CheckConflicts(_ context.Context, _ service.Caller, clientID string, _ *dto.CheckConflictsRequest) (*dto.ConflictsResponse, error) {
	m.clientID = clientID
	return m.conflicts, m.err
}
func (m *mockCalendarService) CreateEvent(_ context.Context, _ service.Caller, clientID string, _ *dto.CreateEventRequest) (*dto.EventResponse, error) {
	m.clientID = clientID
	return m.event, m.err
}
func (m *mockCalendarService) UpdateEvent(_ context.Context, _ service.Caller, eventID string, _ *dto.UpdateEventRequest) (*dto.EventResponse, error) {
	m.eventID = eventID
	return m.event, m.err
}
func (m *mockCalendarService) DeleteEvent(_ context.Context, _ service.Caller, eventID string) error {
	m.eventID = eventID
	return m.err
}
func (m *mockCalendarService) RestoreEvent(_ context.Context, _ service.Caller, eventID string) (*dto.EventResponse, error) {
	m.eventID = eventID
	return m.event, m.err
}
func (m *mockCalendarService) PurgeEvent(_ context.Context, _ service.Caller, eventID string) error {
	m.eventID = eventID
	return m.err
}
func (m *mockCalendarService) ListDeletedEvents(_ context.Context, _ service.Caller, clientID string) ([]dto.EventResponse, error) {
	m.clientID = clientID
	return m.events, m.err
}
func (m *mockCalendarService) AddAttachment(_ context.Context, _ service.Caller, eventID string, _ *dto.AddAttachmentRequest) (*dto.AttachmentResponse, error) {
	m.eventID = eventID
	return m.attachment, m.err
}
func (m *mockCalendarService) ListAttachments(_ context.Context, _ service.Caller, eventID string) ([]dto.AttachmentResponse, error) {
	m.eventID = eventID
	return m.attachments, m.err
}
func (m *mockCalendarService) ExportICS(_ context.Context, _ service.Caller, clientID string, _ *dto.DateRangeQuery) (string, error) {
	m.clientID = clientID
	return m.ics, m.err
}
func (m *mockCalendarService) ImportICS(_ context.Context, _ service.Caller, clientID string, r io.Reader, _ *dto.DateRangeQuery) (*dto.ImportEventsResponse, error) {
	m.clientID = clientID
	b, _ := io.ReadAll(r)
	m.imported = string(b)
	return m.importRes, m.err
}

// ── Mock AuditService ──

type mockAuditService struct {
	req   *dto.AuditLogListRequest
	list  []dto.AuditLogResponse
	total int64
	err   error
}

func (m *mockAuditService) List(_ context.Context, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error) {
	m.req = req
	return m.list, m.total, m.err
}

func (m *mockAuditService) RecordDenial(_ context.Context, _, _, _, _ string) {}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

const (
	testUserID   = "6f1c2a52-8e3b-4c1d-9a55-2f3e4d5c6b7a"
	testClientID = "0b9d7e21-4a6f-4f7e-8c3d-1e2f3a4b5c6d"
	testVisitID  = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
)

var testTokenExp = time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC)

func withAuth(role string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", testUserID)
		c.Set("role", role)
		c.Set("token_jti", "test-jti")
		c.Set("token_exp", testTokenExp)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// serve 注册单个路由并执行请求
func serve(method, pattern, target string, body io.Reader, h gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := gin.New()
	r.Handle(method, pattern, h)
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// 错误映射
// ═══════════════════════════════════════════════════════════

func TestHandleError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{"校验错误", pkgerrors.Validation("Mileage cannot exceed 500"), http.StatusBadRequest, response.CodeValidation, "Mileage cannot exceed 500"},
		{"冲突", service.ErrAlreadyClockedIn, http.StatusConflict, response.CodeConflict, service.ErrAlreadyClockedIn.Error()},
		{"无权限", pkgerrors.Authorization("You do not have permission to view this schedule."), http.StatusForbidden, response.CodeAuthorization, "You do not have permission to view this schedule."},
		{"不存在", service.ErrVisitNotFound, http.StatusNotFound, response.CodeNotFound, "visit not found"},
		{"凭证错误", service.ErrInvalidCredentials, http.StatusUnauthorized, response.CodeUnauthorized, service.ErrInvalidCredentials.Error()},
		{"内部错误", errors.New("connection refused"), http.StatusInternalServerError, response.CodeInternal, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve("GET", "/x", "/x", nil, func(c *gin.Context) { handleError(c, tt.err) })
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			resp := parseResponse(w)
			if resp.Code != tt.wantCode || resp.Message != tt.wantMsg {
				t.Errorf("expected (%d, %q), got (%d, %q)", tt.wantCode, tt.wantMsg, resp.Code, resp.Message)
			}
		})
	}
}

func TestMustGetCaller_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	w := serve("GET", "/auth/me", "/auth/me", nil, h.GetCurrentUser)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{loginResult: &dto.TokenResponse{AccessToken: "test-access-token", ExpiresIn: 900}}
	h := NewAuthHandler(mock)

	w := serve("POST", "/auth/login", "/auth/login", jsonBody(dto.LoginRequest{Username: "alice", Password: "Test1234"}), h.Login)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	w := serve("POST", "/auth/login", "/auth/login", strings.NewReader("invalid json"), h.Login)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrInvalidCredentials})
	w := serve("POST", "/auth/login", "/auth/login", jsonBody(dto.LoginRequest{Username: "alice", Password: "wrong"}), h.Login)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthHandler_Logout_PassesToken(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	w := serve("POST", "/auth/logout", "/auth/logout", nil, withAuth("caregiver", h.Logout))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.logoutJTI != "test-jti" || !mock.logoutExp.Equal(testTokenExp) {
		t.Errorf("unexpected logout args: %s %v", mock.logoutJTI, mock.logoutExp)
	}
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	mock := &mockAuthService{getCurrentResult: &dto.UserResponse{ID: testUserID, Username: "alice"}}
	h := NewAuthHandler(mock)

	w := serve("GET", "/auth/me", "/auth/me", nil, withAuth("caregiver", h.GetCurrentUser))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// VisitHandler Tests
// ═══════════════════════════════════════════════════════════

func TestVisitHandler_ClockIn_Success(t *testing.T) {
	mock := &mockVisitService{visit: &dto.VisitResponse{ID: testVisitID, ClientID: testClientID}}
	h := NewVisitHandler(mock)

	w := serve("POST", "/visits/clock-in", "/visits/clock-in",
		jsonBody(map[string]interface{}{"client_id": testClientID}), withAuth("caregiver", h.ClockIn))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.caller.UserID != testUserID || mock.caller.Role != "caregiver" || mock.caller.IP == "" {
		t.Errorf("caller not populated: %+v", mock.caller)
	}
}

func TestVisitHandler_ClockIn_InvalidClientID(t *testing.T) {
	h := NewVisitHandler(&mockVisitService{})
	w := serve("POST", "/visits/clock-in", "/visits/clock-in",
		jsonBody(map[string]interface{}{"client_id": "not-a-uuid"}), withAuth("caregiver", h.ClockIn))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestVisitHandler_ClockIn_AlreadyActive(t *testing.T) {
	h := NewVisitHandler(&mockVisitService{err: service.ErrAlreadyClockedIn})
	w := serve("POST", "/visits/clock-in", "/visits/clock-in",
		jsonBody(map[string]interface{}{"client_id": testClientID}), withAuth("caregiver", h.ClockIn))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Message != "You are already clocked into another visit. Please clock out first." {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestVisitHandler_ClockOut_EmptyBody(t *testing.T) {
	mock := &mockVisitService{visit: &dto.VisitResponse{ID: testVisitID}}
	h := NewVisitHandler(mock)

	w := serve("POST", "/visits/:id/clock-out", "/visits/"+testVisitID+"/clock-out", nil, withAuth("caregiver", h.ClockOut))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.visitID != testVisitID || mock.clockOutReq.MileageText() != "" {
		t.Errorf("unexpected args: %s %q", mock.visitID, mock.clockOutReq.MileageText())
	}
}

func TestVisitHandler_ClockOut_MileageString(t *testing.T) {
	mock := &mockVisitService{err: pkgerrors.Validation("Mileage cannot exceed 500")}
	h := NewVisitHandler(mock)

	w := serve("POST", "/visits/:id/clock-out", "/visits/"+testVisitID+"/clock-out",
		strings.NewReader(`{"mileage":"501"}`), withAuth("caregiver", h.ClockOut))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if mock.clockOutReq.MileageText() != "501" {
		t.Errorf("expected raw mileage 501, got %q", mock.clockOutReq.MileageText())
	}
}

func TestVisitHandler_AddMileage(t *testing.T) {
	mileage := "42.0"
	mock := &mockVisitService{visit: &dto.VisitResponse{ID: testVisitID, Mileage: &mileage}}
	h := NewVisitHandler(mock)

	w := serve("POST", "/visits/:id/mileage", "/visits/"+testVisitID+"/mileage",
		strings.NewReader(`{"mileage":42}`), withAuth("caregiver", h.AddMileage))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.visitID != testVisitID || mock.mileageReq.MileageText() != "42" || mock.caller.UserID != testUserID {
		t.Errorf("unexpected args: %s %q %+v", mock.visitID, mock.mileageReq.MileageText(), mock.caller)
	}

	mock.err = pkgerrors.Validation("mileage must be a number")
	w = serve("POST", "/visits/:id/mileage", "/visits/"+testVisitID+"/mileage",
		strings.NewReader(`{"mileage":"abc"}`), withAuth("caregiver", h.AddMileage))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Message != "mileage must be a number" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestVisitHandler_GetActive_None(t *testing.T) {
	h := NewVisitHandler(&mockVisitService{})
	w := serve("GET", "/visits/active", "/visits/active", nil, withAuth("caregiver", h.GetActive))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Data != nil {
		t.Errorf("expected null data, got %v", resp.Data)
	}
}

func TestVisitHandler_ListVisits_Paged(t *testing.T) {
	mock := &mockVisitService{visits: []dto.VisitResponse{{ID: "v1"}, {ID: "v2"}}, total: 12}
	h := NewVisitHandler(mock)

	w := serve("GET", "/visits", "/visits?page=2&page_size=2", nil, withAuth("caregiver", h.ListVisits))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Pagination.Page != 2 || resp.Data.Pagination.TotalPages != 6 {
		t.Errorf("unexpected pagination %+v", resp.Data.Pagination)
	}
}

func TestVisitHandler_DeleteVisit_Forbidden(t *testing.T) {
	h := NewVisitHandler(&mockVisitService{err: pkgerrors.Authorization("only administrators can delete visits")})
	w := serve("DELETE", "/visits/:id", "/visits/"+testVisitID, nil, withAuth("caregiver", h.DeleteVisit))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestVisitHandler_AddComment(t *testing.T) {
	h := NewVisitHandler(&mockVisitService{})
	w := serve("POST", "/visits/:id/comments", "/visits/"+testVisitID+"/comments",
		jsonBody(dto.CommentRequest{Text: "Client was in good spirits"}), withAuth("caregiver", h.AddComment))
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// SummaryHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSummaryHandler_GetWeekly_DefaultsToCaller(t *testing.T) {
	mock := &mockSummaryService{result: &dto.WeeklySummaryResponse{TotalHours: "0.00"}}
	h := NewSummaryHandler(mock)

	w := serve("GET", "/summaries/weekly", "/summaries/weekly?week_start=2024-01-15", nil, withAuth("caregiver", h.GetWeekly))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.caregiverID != testUserID || mock.weekStart != "2024-01-15" {
		t.Errorf("unexpected args: %s %s", mock.caregiverID, mock.weekStart)
	}
}

func TestSummaryHandler_GetWeekly_InvalidDate(t *testing.T) {
	h := NewSummaryHandler(&mockSummaryService{err: pkgerrors.Validation("invalid date \"2024-13-01\", expected YYYY-MM-DD")})
	w := serve("GET", "/summaries/weekly", "/summaries/weekly?week_start=2024-13-01", nil, withAuth("caregiver", h.GetWeekly))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSummaryHandler_ListForCaregiver(t *testing.T) {
	mock := &mockSummaryService{list: []dto.WeeklySummaryResponse{{WeekStart: "2024-01-15"}}}
	h := NewSummaryHandler(mock)

	w := serve("GET", "/summaries/caregivers/:id", "/summaries/caregivers/"+testUserID, nil, withAuth("admin", h.ListForCaregiver))
	if w.Code != http.StatusOK || mock.caregiverID != testUserID {
		t.Errorf("expected 200 for %s, got %d (%s)", testUserID, w.Code, mock.caregiverID)
	}
}

// ═══════════════════════════════════════════════════════════
// ShiftHandler Tests
// ═══════════════════════════════════════════════════════════

func TestShiftHandler_Create_MissingFields(t *testing.T) {
	h := NewShiftHandler(&mockShiftService{})
	w := serve("POST", "/shifts", "/shifts", jsonBody(map[string]string{"client_id": testClientID}), withAuth("admin", h.Create))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestShiftHandler_Update_Conflict(t *testing.T) {
	h := NewShiftHandler(&mockShiftService{err: service.ErrShiftConflict})
	w := serve("PUT", "/shifts/:id", "/shifts/s1", jsonBody(map[string]interface{}{"version": 1}), withAuth("admin", h.Update))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestShiftHandler_ListMine(t *testing.T) {
	h := NewShiftHandler(&mockShiftService{list: []dto.ShiftResponse{{ID: "s1"}}})
	w := serve("GET", "/shifts/my", "/shifts/my", nil, withAuth("caregiver", h.ListMine))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// PayrollHandler Tests
// ═══════════════════════════════════════════════════════════

func TestPayrollHandler_Report_Navigation(t *testing.T) {
	mock := &mockPayrollService{report: &dto.PayrollReport{StartDate: "2024-01-08"}}
	h := NewPayrollHandler(mock)

	w := serve("GET", "/payroll", "/payroll?start=2024-01-15&end=2024-01-21&shift=prev", nil, withAuth("admin", h.Report))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.query.Start != "2024-01-15" || mock.query.Shift != "prev" {
		t.Errorf("unexpected query %+v", mock.query)
	}
}

func TestPayrollHandler_Report_BadShift(t *testing.T) {
	h := NewPayrollHandler(&mockPayrollService{})
	w := serve("GET", "/payroll", "/payroll?shift=sideways", nil, withAuth("admin", h.Report))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPayrollHandler_ExportCSV(t *testing.T) {
	mock := &mockPayrollService{
		buf:      bytes.NewBufferString("Caregiver,Username,Total Hours,Visits\n"),
		filename: "payroll_2024-01-15_to_2024-01-21.csv",
	}
	h := NewPayrollHandler(mock)

	w := serve("GET", "/payroll/export.csv", "/payroll/export.csv?start=2024-01-15&end=2024-01-21", nil, withAuth("admin", h.ExportCSV))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="payroll_2024-01-15_to_2024-01-21.csv"` {
		t.Errorf("unexpected Content-Disposition %q", got)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("unexpected Content-Type %q", w.Header().Get("Content-Type"))
	}
}

func TestPayrollHandler_ExportXLSX_Failure(t *testing.T) {
	h := NewPayrollHandler(&mockPayrollService{err: service.ErrPayrollExportFail})
	w := serve("GET", "/payroll/export.xlsx", "/payroll/export.xlsx", nil, withAuth("admin", h.ExportXLSX))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// CalendarHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCalendarHandler_GetSchedule_Denied(t *testing.T) {
	mock := &mockCalendarService{err: pkgerrors.Authorization("You do not have permission to view this schedule.")}
	h := NewCalendarHandler(mock)

	w := serve("GET", "/clients/:id/schedule", "/clients/"+testClientID+"/schedule", nil, withAuth("family", h.GetSchedule))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if mock.clientID != testClientID {
		t.Errorf("expected client %s, got %s", testClientID, mock.clientID)
	}
}

func TestCalendarHandler_CalendarFeed_Array(t *testing.T) {
	mock := &mockCalendarService{feed: []dto.CalendarFeedItem{{ID: "shift_1", ClassName: "event-shift"}}}
	h := NewCalendarHandler(mock)

	w := serve("GET", "/clients/:id/calendar-feed", "/clients/"+testClientID+"/calendar-feed", nil, withAuth("admin", h.CalendarFeed))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data []dto.CalendarFeedItem `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 1 || resp.Data[0].ID != "shift_1" {
		t.Errorf("unexpected feed %+v", resp.Data)
	}
}

func TestCalendarHandler_CheckConflicts_MissingRange(t *testing.T) {
	h := NewCalendarHandler(&mockCalendarService{})
	w := serve("POST", "/clients/:id/events/check-conflicts", "/clients/"+testClientID+"/events/check-conflicts",
		jsonBody(map[string]string{"start_time": "2024-01-16T09:00:00Z"}), withAuth("admin", h.CheckConflicts))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCalendarHandler_CreateEvent_WithConflicts(t *testing.T) {
	mock := &mockCalendarService{event: &dto.EventResponse{ID: "e1", Conflicts: []dto.ConflictItem{{Type: "shift", ID: "s1"}}}}
	h := NewCalendarHandler(mock)

	w := serve("POST", "/clients/:id/events", "/clients/"+testClientID+"/events", jsonBody(dto.CreateEventRequest{
		Title:     "Dentist",
		StartTime: "2024-01-16T09:00:00-08:00",
		EndTime:   "2024-01-16T10:00:00-08:00",
	}), withAuth("family", h.CreateEvent))

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 even with conflicts, got %d", w.Code)
	}
}

func TestCalendarHandler_ExportICS(t *testing.T) {
	mock := &mockCalendarService{ics: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}
	h := NewCalendarHandler(mock)

	w := serve("GET", "/clients/:id/calendar.ics", "/clients/"+testClientID+"/calendar.ics", nil, withAuth("family", h.ExportICS))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Errorf("unexpected Content-Type %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), testClientID) {
		t.Errorf("filename should include client id: %q", w.Header().Get("Content-Disposition"))
	}
}

func TestCalendarHandler_ImportEvents_Multipart(t *testing.T) {
	mock := &mockCalendarService{importRes: &dto.ImportEventsResponse{Imported: 1}}
	h := NewCalendarHandler(mock)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "appointments.ics")
	fw.Write([]byte("BEGIN:VCALENDAR"))
	mw.Close()

	w := httptest.NewRecorder()
	r := gin.New()
	r.POST("/clients/:id/events/import", withAuth("admin", h.ImportEvents))
	req := httptest.NewRequest("POST", "/clients/"+testClientID+"/events/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.imported != "BEGIN:VCALENDAR" {
		t.Errorf("file content not forwarded: %q", mock.imported)
	}
}

func TestCalendarHandler_UpdateEvent_MissingVersion(t *testing.T) {
	h := NewCalendarHandler(&mockCalendarService{})
	w := serve("PUT", "/events/:id", "/events/e1", jsonBody(map[string]string{"title": "New"}), withAuth("admin", h.UpdateEvent))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCalendarHandler_DeleteEvent_AlreadyDeleted(t *testing.T) {
	mock := &mockCalendarService{err: service.ErrEventAlreadyDeleted}
	h := NewCalendarHandler(mock)

	w := serve("DELETE", "/events/:id", "/events/e1", nil, withAuth("admin", h.DeleteEvent))
	if w.Code != http.StatusConflict || mock.eventID != "e1" {
		t.Errorf("expected 409 for e1, got %d (%s)", w.Code, mock.eventID)
	}
}

// ═══════════════════════════════════════════════════════════
// AuditHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuditHandler_List(t *testing.T) {
	mock := &mockAuditService{list: []dto.AuditLogResponse{{Action: "clock_in"}}, total: 1}
	h := NewAuditHandler(mock)

	w := serve("GET", "/audit-logs", "/audit-logs?action=clock_in", nil, withAuth("admin", h.List))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.req.Action != "clock_in" {
		t.Errorf("expected action filter clock_in, got %q", mock.req.Action)
	}
}
