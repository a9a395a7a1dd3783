package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
	pkgerrors "github.com/hcunanan79/COREcare-access/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = "user-" + user.Username
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListActiveByRole(_ context.Context, role string) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if u.IsActive && u.Role == role {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

// ── Mock ClientRepository / FamilyLinkRepository ──

type mockClientRepo struct {
	clients map[string]*model.Client
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{clients: make(map[string]*model.Client)}
}

func (m *mockClientRepo) Create(_ context.Context, client *model.Client) error {
	if client.ClientID == "" {
		client.ClientID = fmt.Sprintf("client-%d", len(m.clients)+1)
	}
	cp := *client
	m.clients[client.ClientID] = &cp
	return nil
}

func (m *mockClientRepo) GetByID(_ context.Context, id string) (*model.Client, error) {
	if c, ok := m.clients[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockFamilyLinkRepo struct {
	links []model.ClientFamilyMember
}

func newMockFamilyLinkRepo() *mockFamilyLinkRepo {
	return &mockFamilyLinkRepo{}
}

func (m *mockFamilyLinkRepo) Create(_ context.Context, link *model.ClientFamilyMember) error {
	for _, l := range m.links {
		if l.ClientID == link.ClientID && l.UserID == link.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.links = append(m.links, *link)
	return nil
}

func (m *mockFamilyLinkRepo) Get(_ context.Context, clientID, userID string) (*model.ClientFamilyMember, error) {
	for i := range m.links {
		if m.links[i].ClientID == clientID && m.links[i].UserID == userID {
			cp := m.links[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ShiftRepository ──

type mockShiftRepo struct {
	shifts map[string]*model.Shift
	users  *mockUserRepo
	seq    int
}

func newMockShiftRepo(users *mockUserRepo) *mockShiftRepo {
	return &mockShiftRepo{shifts: make(map[string]*model.Shift), users: users}
}

func (m *mockShiftRepo) withCaregiver(s model.Shift) model.Shift {
	if u, ok := m.users.users[s.CaregiverID]; ok {
		cp := *u
		s.Caregiver = &cp
	}
	return s
}

func (m *mockShiftRepo) Create(_ context.Context, shift *model.Shift) error {
	if shift.ShiftID == "" {
		m.seq++
		shift.ShiftID = fmt.Sprintf("shift-%d", m.seq)
	}
	if shift.Version == 0 {
		shift.Version = 1
	}
	cp := *shift
	m.shifts[shift.ShiftID] = &cp
	return nil
}

func (m *mockShiftRepo) GetByID(_ context.Context, id string) (*model.Shift, error) {
	if s, ok := m.shifts[id]; ok {
		cp := m.withCaregiver(*s)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Shift, error) {
	return m.GetByID(ctx, id)
}

func (m *mockShiftRepo) Update(_ context.Context, shift *model.Shift) error {
	stored, ok := m.shifts[shift.ShiftID]
	if !ok || stored.Version != shift.Version {
		return pkgerrors.ErrOptimisticLock
	}
	shift.Version++
	cp := *shift
	m.shifts[shift.ShiftID] = &cp
	return nil
}

func (m *mockShiftRepo) ListOverlapping(_ context.Context, clientID string, from, to time.Time) ([]model.Shift, error) {
	var result []model.Shift
	for _, s := range m.shifts {
		if s.ClientID == clientID && s.StartTime.Before(to) && s.EndTime.After(from) {
			result = append(result, m.withCaregiver(*s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockShiftRepo) List(_ context.Context, f repository.ShiftFilter, offset, limit int) ([]model.Shift, int64, error) {
	var result []model.Shift
	for _, s := range m.shifts {
		if f.CaregiverID != "" && s.CaregiverID != f.CaregiverID {
			continue
		}
		if f.ClientID != "" && s.ClientID != f.ClientID {
			continue
		}
		if f.From != nil && !s.EndTime.After(*f.From) {
			continue
		}
		if f.To != nil && !s.StartTime.Before(*f.To) {
			continue
		}
		result = append(result, m.withCaregiver(*s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return paginate(result, offset, limit), int64(len(result)), nil
}

// ── Mock VisitRepository ──

type mockVisitRepo struct {
	visits map[string]*model.Visit
	seq    int
}

func newMockVisitRepo() *mockVisitRepo {
	return &mockVisitRepo{visits: make(map[string]*model.Visit)}
}

// activeConflict 模拟部分唯一索引：每个护工最多一条进行中出勤
func (m *mockVisitRepo) activeConflict(v *model.Visit) bool {
	if v.ClockOut != nil || v.CaregiverID == nil {
		return false
	}
	for id, other := range m.visits {
		if id != v.VisitID && other.ClockOut == nil && other.BelongsTo(*v.CaregiverID) {
			return true
		}
	}
	return false
}

func (m *mockVisitRepo) Create(_ context.Context, visit *model.Visit) error {
	if m.activeConflict(visit) {
		return gorm.ErrDuplicatedKey
	}
	if visit.VisitID == "" {
		m.seq++
		visit.VisitID = fmt.Sprintf("visit-%d", m.seq)
	}
	cp := *visit
	m.visits[visit.VisitID] = &cp
	return nil
}

func (m *mockVisitRepo) GetByID(_ context.Context, id string) (*model.Visit, error) {
	if v, ok := m.visits[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVisitRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Visit, error) {
	return m.GetByID(ctx, id)
}

func (m *mockVisitRepo) GetActiveByCaregiver(_ context.Context, caregiverID string) (*model.Visit, error) {
	for _, v := range m.visits {
		if v.ClockOut == nil && v.BelongsTo(caregiverID) {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVisitRepo) Update(_ context.Context, visit *model.Visit) error {
	if m.activeConflict(visit) {
		return gorm.ErrDuplicatedKey
	}
	cp := *visit
	m.visits[visit.VisitID] = &cp
	return nil
}

func (m *mockVisitRepo) Delete(_ context.Context, id string) error {
	delete(m.visits, id)
	return nil
}

func (m *mockVisitRepo) ExistsForShiftWithOtherCaregiver(_ context.Context, shiftID, caregiverID string) (bool, error) {
	for _, v := range m.visits {
		if derefStr(v.ShiftID) == shiftID && !v.BelongsTo(caregiverID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockVisitRepo) inRange(caregiverID string, from, to time.Time) []model.Visit {
	var result []model.Visit
	for _, v := range m.visits {
		if v.BelongsTo(caregiverID) && !v.ClockIn.Before(from) && v.ClockIn.Before(to) {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClockIn.Before(result[j].ClockIn) })
	return result
}

func (m *mockVisitRepo) ListCompleted(_ context.Context, caregiverID string, from, to time.Time) ([]model.Visit, error) {
	var result []model.Visit
	for _, v := range m.inRange(caregiverID, from, to) {
		if v.DurationHours.Valid {
			result = append(result, v)
		}
	}
	return result, nil
}

func (m *mockVisitRepo) ListByCaregiver(_ context.Context, caregiverID string, from, to time.Time, offset, limit int) ([]model.Visit, int64, error) {
	all := m.inRange(caregiverID, from, to)
	sort.Slice(all, func(i, j int) bool { return all[i].ClockIn.After(all[j].ClockIn) })
	return paginate(all, offset, limit), int64(len(all)), nil
}

type mockVisitCommentRepo struct {
	comments []model.VisitComment
}

func (m *mockVisitCommentRepo) Create(_ context.Context, c *model.VisitComment) error {
	c.CommentID = fmt.Sprintf("comment-%d", len(m.comments)+1)
	c.CreatedAt = time.Now()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *mockVisitCommentRepo) ListByVisit(_ context.Context, visitID string) ([]model.VisitComment, error) {
	var result []model.VisitComment
	for i := len(m.comments) - 1; i >= 0; i-- {
		if m.comments[i].VisitID == visitID {
			result = append(result, m.comments[i])
		}
	}
	return result, nil
}

// ── Mock WeeklySummaryRepository ──

type mockWeeklySummaryRepo struct {
	rows    map[string]*model.WeeklySummary
	upserts int
	failErr error
}

func newMockWeeklySummaryRepo() *mockWeeklySummaryRepo {
	return &mockWeeklySummaryRepo{rows: make(map[string]*model.WeeklySummary)}
}

func summaryKey(caregiverID string, weekStart time.Time) string {
	return caregiverID + "|" + weekStart.Format("2006-01-02")
}

func (m *mockWeeklySummaryRepo) Upsert(_ context.Context, s *model.WeeklySummary) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.upserts++
	cp := *s
	m.rows[summaryKey(s.CaregiverID, time.Time(s.WeekStart))] = &cp
	return nil
}

func (m *mockWeeklySummaryRepo) Get(_ context.Context, caregiverID string, weekStart time.Time) (*model.WeeklySummary, error) {
	if s, ok := m.rows[summaryKey(caregiverID, weekStart)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeeklySummaryRepo) ListByCaregiver(_ context.Context, caregiverID string, limit int) ([]model.WeeklySummary, error) {
	var result []model.WeeklySummary
	for _, s := range m.rows {
		if s.CaregiverID == caregiverID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return time.Time(result[i].WeekStart).After(time.Time(result[j].WeekStart))
	})
	return paginate(result, 0, limit), nil
}

// get 按本地周一读取，测试断言用
func (m *mockWeeklySummaryRepo) get(caregiverID string, monday time.Time) *model.WeeklySummary {
	return m.rows[summaryKey(caregiverID, monday)]
}

// ── Mock CalendarEventRepository / EventAttachmentRepository ──

type mockEventAttachmentRepo struct {
	attachments []model.EventAttachment
}

func (m *mockEventAttachmentRepo) Create(_ context.Context, a *model.EventAttachment) error {
	a.AttachmentID = fmt.Sprintf("att-%d", len(m.attachments)+1)
	a.CreatedAt = time.Now()
	m.attachments = append(m.attachments, *a)
	return nil
}

func (m *mockEventAttachmentRepo) ListByEvent(_ context.Context, eventID string) ([]model.EventAttachment, error) {
	var result []model.EventAttachment
	for _, a := range m.attachments {
		if a.EventID == eventID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockEventAttachmentRepo) DeleteByEvent(_ context.Context, eventID string) error {
	kept := m.attachments[:0]
	for _, a := range m.attachments {
		if a.EventID != eventID {
			kept = append(kept, a)
		}
	}
	m.attachments = kept
	return nil
}

type mockCalendarEventRepo struct {
	events      map[string]*model.CalendarEvent
	attachments *mockEventAttachmentRepo
	seq         int
}

func newMockCalendarEventRepo(attachments *mockEventAttachmentRepo) *mockCalendarEventRepo {
	return &mockCalendarEventRepo{events: make(map[string]*model.CalendarEvent), attachments: attachments}
}

func (m *mockCalendarEventRepo) withAttachments(e model.CalendarEvent) model.CalendarEvent {
	e.Attachments, _ = m.attachments.ListByEvent(context.Background(), e.EventID)
	return e
}

func (m *mockCalendarEventRepo) Create(_ context.Context, e *model.CalendarEvent) error {
	if e.EventID == "" {
		m.seq++
		e.EventID = fmt.Sprintf("event-%d", m.seq)
	}
	if e.Version == 0 {
		e.Version = 1
	}
	cp := *e
	m.events[e.EventID] = &cp
	return nil
}

func (m *mockCalendarEventRepo) BatchCreate(ctx context.Context, events []model.CalendarEvent) error {
	for i := range events {
		if err := m.Create(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockCalendarEventRepo) GetByID(_ context.Context, id string) (*model.CalendarEvent, error) {
	if e, ok := m.events[id]; ok {
		cp := m.withAttachments(*e)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCalendarEventRepo) Update(_ context.Context, e *model.CalendarEvent) error {
	stored, ok := m.events[e.EventID]
	if !ok || stored.Version != e.Version {
		return pkgerrors.ErrOptimisticLock
	}
	e.Version++
	cp := *e
	cp.Attachments = nil
	m.events[e.EventID] = &cp
	return nil
}

func (m *mockCalendarEventRepo) TransitionStatus(_ context.Context, id string, from, to model.EventStatus, deletedAt *time.Time) (bool, error) {
	e, ok := m.events[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.DeletedAt = deletedAt
	e.Version++
	return true, nil
}

func (m *mockCalendarEventRepo) ListActive(_ context.Context, clientID string, from, to time.Time) ([]model.CalendarEvent, error) {
	var result []model.CalendarEvent
	for _, e := range m.events {
		if e.ClientID == clientID && e.Status == model.EventStatusActive && e.Overlaps(from, to) {
			result = append(result, m.withAttachments(*e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockCalendarEventRepo) ListActiveOverlapping(_ context.Context, clientID string, start, end time.Time, excludeID string) ([]model.CalendarEvent, error) {
	var result []model.CalendarEvent
	for _, e := range m.events {
		if e.ClientID == clientID && e.Status == model.EventStatusActive && e.EventID != excludeID && e.Overlaps(start, end) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockCalendarEventRepo) ListAll(_ context.Context, clientID string, status model.EventStatus) ([]model.CalendarEvent, error) {
	var result []model.CalendarEvent
	for _, e := range m.events {
		if e.ClientID == clientID && (status == "" || e.Status == status) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	return result, nil
}

func (m *mockCalendarEventRepo) Delete(_ context.Context, id string) error {
	delete(m.events, id)
	return nil
}

// ── Mock AuditLogRepository ──

type mockAuditLogRepo struct {
	entries []model.AuditLog
}

func (m *mockAuditLogRepo) Create(_ context.Context, entry *model.AuditLog) error {
	entry.AuditID = fmt.Sprintf("audit-%d", len(m.entries)+1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditLogRepo) List(_ context.Context, f repository.AuditLogFilter, offset, limit int) ([]model.AuditLog, int64, error) {
	var result []model.AuditLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ActorID != "" && derefStr(e.ActorID) != f.ActorID {
			continue
		}
		if f.VisitID != "" && derefStr(e.VisitID) != f.VisitID {
			continue
		}
		result = append(result, e)
	}
	return paginate(result, offset, limit), int64(len(result)), nil
}

// actions 按写入顺序返回审计动作
func (m *mockAuditLogRepo) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

func (m *mockAuditLogRepo) count(action string) int {
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// ── 通用 ──

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// testRepos 测试用仓储集合
type testRepos struct {
	repo        *repository.Repository
	users       *mockUserRepo
	clients     *mockClientRepo
	links       *mockFamilyLinkRepo
	shifts      *mockShiftRepo
	visits      *mockVisitRepo
	comments    *mockVisitCommentRepo
	summaries   *mockWeeklySummaryRepo
	events      *mockCalendarEventRepo
	attachments *mockEventAttachmentRepo
	audit       *mockAuditLogRepo
}

func newTestRepos() *testRepos {
	users := newMockUserRepo()
	attachments := &mockEventAttachmentRepo{}
	r := &testRepos{
		users:       users,
		clients:     newMockClientRepo(),
		links:       newMockFamilyLinkRepo(),
		shifts:      newMockShiftRepo(users),
		visits:      newMockVisitRepo(),
		comments:    &mockVisitCommentRepo{},
		summaries:   newMockWeeklySummaryRepo(),
		events:      newMockCalendarEventRepo(attachments),
		attachments: attachments,
		audit:       &mockAuditLogRepo{},
	}
	r.repo = &repository.Repository{
		User:            r.users,
		Client:          r.clients,
		FamilyLink:      r.links,
		Shift:           r.shifts,
		Visit:           r.visits,
		VisitComment:    r.comments,
		WeeklySummary:   r.summaries,
		CalendarEvent:   r.events,
		EventAttachment: r.attachments,
		AuditLog:        r.audit,
	}
	return r
}

// ── 测试夹具 ──

var testLoc = mustLoadLocation("America/Los_Angeles")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// localTime 机构时区下的时间
func localTime(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, testLoc)
}

// fixedClock 返回固定时间的时钟，可通过 set 推进
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time  { return c.t }
func (c *fixedClock) set(t time.Time) { c.t = t }

var testLogger = zap.NewNop()

const (
	caregiverA = "cg-a"
	caregiverB = "cg-b"
	adminID    = "admin-1"
	familyID   = "family-1"
	clientX    = "client-x"
)

func seedBasics(r *testRepos) {
	r.users.users[caregiverA] = &model.User{UserID: caregiverA, Username: "alice", FirstName: "Alice", LastName: "Carter", Role: model.RoleCaregiver, IsActive: true}
	r.users.users[caregiverB] = &model.User{UserID: caregiverB, Username: "bob", FirstName: "Bob", LastName: "Nguyen", Role: model.RoleCaregiver, IsActive: true}
	r.users.users[adminID] = &model.User{UserID: adminID, Username: "admin", FirstName: "Ada", LastName: "Admin", Role: model.RoleAdmin, IsActive: true}
	r.users.users[familyID] = &model.User{UserID: familyID, Username: "fran", FirstName: "Fran", LastName: "Doe", Role: model.RoleFamily, IsActive: true}
	r.clients.clients[clientX] = &model.Client{ClientID: clientX, FirstName: "Mary", LastName: "Major", Active: true}
}

func callerOf(userID, role string) Caller {
	return Caller{UserID: userID, Role: role, IP: "127.0.0.1"}
}
