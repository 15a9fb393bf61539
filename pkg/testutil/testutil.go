// Package testutil holds shared test doubles: a sqlmock-backed database
// wrapper, an in-memory event publisher and argument matchers.
package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// MockDB wraps sqlmock behind the database.DB type repositories expect.
type MockDB struct {
	DB   *database.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a mock database for unit testing repository and
// service logic without a real PostgreSQL instance.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	wrapped := database.NewWithDB(sqlx.NewDb(db, "postgres"), logger.Nop())
	t.Cleanup(func() { wrapped.Close() })

	return &MockDB{DB: wrapped, Mock: mock}
}

// ExpectQuery sets up an expected query, quoting the literal SQL.
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec sets up an expected exec, quoting the literal SQL.
func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectationsWereMet fails the test when expectations remain unmet.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// Rows creates a mock result set.
func Rows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime matches any time.Time argument.
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface.
func (AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// AnyUUID matches any canonical UUID string argument.
type AnyUUID struct{}

// Match satisfies the sqlmock.Argument interface.
func (AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	matched, _ := regexp.MatchString(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, s)
	return matched
}

// CapturePublisher records published events for later assertions.
type CapturePublisher struct {
	mu     sync.Mutex
	events []CapturedEvent
}

// CapturedEvent is one recorded publication.
type CapturedEvent struct {
	Type string
	Data interface{}
}

// Publish records the event.
func (p *CapturePublisher) Publish(ctx context.Context, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, CapturedEvent{Type: eventType, Data: data})
}

// Events returns a copy of everything published so far.
func (p *CapturePublisher) Events() []CapturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CapturedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// AssertPublished fails the test unless an event of the given type was
// published.
func (p *CapturePublisher) AssertPublished(t *testing.T, eventType string) {
	t.Helper()
	for _, e := range p.Events() {
		if e.Type == eventType {
			return
		}
	}
	t.Errorf("expected event %q to be published", eventType)
}
