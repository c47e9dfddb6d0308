package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"coursemarket/backend/config"
	"coursemarket/backend/models"
	"coursemarket/backend/payment"
	"coursemarket/backend/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAcademy = "academy-test"

func testConfig() *config.Config {
	return &config.Config{
		AcademyID:        testAcademy,
		AcademyName:      "Test Academy",
		JWTSecret:        "test-secret",
		PaymentCurrency:  "IDR",
		PaymentReturnURL: "http://localhost:3000/checkout/return",
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, utils.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type testEnv struct {
	db      *gorm.DB
	cfg     *config.Config
	gateway *fakeGateway
	store   *MemoryCartStore
	svc     *Container
}

func newTestEnv(t *testing.T, withGateway bool) *testEnv {
	t.Helper()
	env := &testEnv{db: newTestDB(t), cfg: testConfig(), store: NewMemoryCartStore()}
	var gw payment.Gateway
	if withGateway {
		env.gateway = newFakeGateway()
		gw = env.gateway
	}
	env.svc = NewContainer(env.db, env.cfg, env.store, gw, nil, utils.NopLogger())
	return env
}

func (e *testEnv) user(t *testing.T, email string) *models.User {
	t.Helper()
	u := models.User{AcademyID: testAcademy, Email: email, DisplayName: email, PasswordHash: "x"}
	require.NoError(t, e.db.Create(&u).Error)
	return &u
}

func (e *testEnv) course(t *testing.T, title string, price float64) *models.Course {
	t.Helper()
	c, err := e.svc.Catalog.CreateCourse(context.Background(), CourseInput{
		Title:              title,
		Instructor:         "Ada",
		Duration:           "4h",
		Price:              &price,
		Category:           "programming",
		Level:              "beginner",
		Description:        title + " description",
		AboutCourse:        "about",
		LearningObjectives: "objectives",
		Status:             models.CourseStatusPublished,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) count(t *testing.T, id string) int {
	t.Helper()
	c, err := e.svc.Catalog.GetCourseByID(context.Background(), id)
	require.NoError(t, err)
	return c.EnrolledCount
}

// fakeGateway records sessions in memory; tests flip their status.
type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]*payment.SessionStatus
	requests  []payment.SessionRequest
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*payment.SessionStatus{}}
}

func (f *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.requests = append(f.requests, req)
	id := fmt.Sprintf("sess-%d", len(f.requests))
	f.sessions[id] = &payment.SessionStatus{
		ID:            id,
		Status:        models.SessionStatusOpen,
		CustomerEmail: req.CustomerEmail,
		Metadata:      payment.Metadata{OrderID: req.OrderID, CourseIDs: req.CourseIDs},
	}
	return &payment.Session{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (f *fakeGateway) GetSession(_ context.Context, id string) (*payment.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeGateway) set(id, status string, meta *payment.Metadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		s = &payment.SessionStatus{ID: id}
		f.sessions[id] = s
	}
	s.Status = status
	if meta != nil {
		s.Metadata = *meta
	}
}

var errGatewayDown = errors.New("gateway down")
