package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/config"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/repository"
)

// testClock is an injectable, advanceable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// workday returns a clock time inside the default operating window.
func workday(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.Local)
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.StatusHistory = append([]domain.StatusHistoryEntry(nil), t.StatusHistory...)
	clone.ProposedSlots = append([]domain.SlotProposal(nil), t.ProposedSlots...)
	clone.LaborItems = append([]domain.LineItem(nil), t.LaborItems...)
	clone.PartItems = append([]domain.LineItem(nil), t.PartItems...)
	return &clone
}

// fakeTicketRepo stores tickets in memory with the same transition semantics
// as the SQL repository: ApplyTransition persists the snapshot together with
// the new history entry and appends the entry to the caller's ticket.
type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket

	failCreate     error
	failTransition error
	failUpdate     error

	hasAt   map[string]bool
	countOn map[string]int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets: make(map[string]*domain.Ticket),
		hasAt:   make(map[string]bool),
		countOn: make(map[string]int),
	}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("tkt-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		out = append(out, *cloneTicket(ticket))
	}
	return out, nil
}

func (r *fakeTicketRepo) ApplyTransition(ctx context.Context, ticket *domain.Ticket, entry domain.StatusHistoryEntry) error {
	if r.failTransition != nil {
		return r.failTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := cloneTicket(ticket)
	stored.StatusHistory = append(stored.StatusHistory, entry)
	stored.UpdatedAt = entry.Timestamp
	r.tickets[ticket.ID] = stored
	ticket.StatusHistory = append(ticket.StatusHistory, entry)
	return nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) History(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return append([]domain.StatusHistoryEntry(nil), ticket.StatusHistory...), nil
}

func (r *fakeTicketRepo) HasAppointmentAt(ctx context.Context, technicianID, date, timeOfDay string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasAt[technicianID+"|"+date+"|"+timeOfDay], nil
}

func (r *fakeTicketRepo) CountAppointmentsOn(ctx context.Context, technicianID, date string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countOn[technicianID+"|"+date], nil
}

// seed stores a ticket directly, bypassing Create.
func (r *fakeTicketRepo) seed(ticket *domain.Ticket) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		r.seq++
		ticket.ID = fmt.Sprintf("tkt-%d", r.seq)
	}
	if len(ticket.StatusHistory) == 0 {
		ticket.StatusHistory = []domain.StatusHistoryEntry{{
			Status:    ticket.Status,
			Label:     domain.StatusLabel(ticket.Status),
			Timestamp: workday(9, 0),
		}}
	}
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return ticket
}

type fakeTechnicianRepo struct {
	mu    sync.Mutex
	staff map[string]*domain.Technician
}

func newFakeTechnicianRepo(staff ...domain.Technician) *fakeTechnicianRepo {
	repo := &fakeTechnicianRepo{staff: make(map[string]*domain.Technician)}
	for i := range staff {
		member := staff[i]
		repo.staff[member.ID] = &member
	}
	return repo
}

func (r *fakeTechnicianRepo) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *member
	return &clone, nil
}

func (r *fakeTechnicianRepo) GetByEmail(ctx context.Context, email string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.staff {
		if member.Email == email {
			clone := *member
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTechnicianRepo) ListActive(ctx context.Context) ([]domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Technician, 0, len(r.staff))
	for _, member := range r.staff {
		if member.Active && member.Kind == domain.SubjectTypeTechnician {
			out = append(out, *member)
		}
	}
	return out, nil
}

type fakeBudgetRepo struct {
	mu       sync.Mutex
	seq      int
	budgets  map[string]*domain.Budget
	failMark error
}

func newFakeBudgetRepo() *fakeBudgetRepo {
	return &fakeBudgetRepo{budgets: make(map[string]*domain.Budget)}
}

func (r *fakeBudgetRepo) Create(ctx context.Context, budget *domain.Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	budget.ID = fmt.Sprintf("bgt-%d", r.seq)
	clone := *budget
	r.budgets[budget.ID] = &clone
	return nil
}

func (r *fakeBudgetRepo) GetByID(ctx context.Context, id string) (*domain.Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	budget, ok := r.budgets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *budget
	return &clone, nil
}

func (r *fakeBudgetRepo) MarkConverted(ctx context.Context, budgetID, ticketID string) error {
	if r.failMark != nil {
		return r.failMark
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	budget, ok := r.budgets[budgetID]
	if !ok {
		return pgx.ErrNoRows
	}
	if budget.ConvertedTicketID != nil {
		return pgx.ErrNoRows
	}
	budget.ConvertedTicketID = &ticketID
	budget.Status = domain.BudgetAccepted
	return nil
}

type fakePositionRepo struct {
	mu         sync.Mutex
	inserted   []domain.Position
	failInsert error
}

func (r *fakePositionRepo) Insert(ctx context.Context, position domain.Position) error {
	if r.failInsert != nil {
		return r.failInsert
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, position)
	return nil
}

func (r *fakePositionRepo) Latest(ctx context.Context, technicianID string) (*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.inserted) - 1; i >= 0; i-- {
		if r.inserted[i].TechnicianID == technicianID {
			pos := r.inserted[i]
			return &pos, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakePositionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

type fakeDocGenerator struct {
	mu          sync.Mutex
	quoteErr    error
	receiptErr  error
	reportErr   error
	quoteCalls  int
	reportCalls int
}

func (g *fakeDocGenerator) QuoteDocument(ctx context.Context, ticket *domain.Ticket) (string, error) {
	g.mu.Lock()
	g.quoteCalls++
	g.mu.Unlock()
	if g.quoteErr != nil {
		return "", g.quoteErr
	}
	return "doc://quote/" + ticket.ID, nil
}

func (g *fakeDocGenerator) MaterialReceipt(ctx context.Context, ticket *domain.Ticket) (string, error) {
	if g.receiptErr != nil {
		return "", g.receiptErr
	}
	return "doc://receipt/" + ticket.ID, nil
}

func (g *fakeDocGenerator) ServiceReport(ctx context.Context, ticket *domain.Ticket) (string, error) {
	g.mu.Lock()
	g.reportCalls++
	g.mu.Unlock()
	if g.reportErr != nil {
		return "", g.reportErr
	}
	return "doc://report/" + ticket.ID, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *recordingDispatcher) typesSeen() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, event := range d.events {
		out = append(out, event.Type)
	}
	return out
}

func (d *recordingDispatcher) sawType(eventType events.EventType) bool {
	for _, seen := range d.typesSeen() {
		if seen == eventType {
			return true
		}
	}
	return false
}

type recordingChangeStream struct {
	mu      sync.Mutex
	changes []events.TicketChange
}

func (s *recordingChangeStream) Publish(ctx context.Context, change events.TicketChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change)
	return nil
}

func (s *recordingChangeStream) Subscribe(ctx context.Context, handler func(events.TicketChange)) error {
	return nil
}

var errBoom = errors.New("boom")

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{OpenHour: 8, CloseHour: 20, MaxStartLeadMinutes: 60}
}

func newTestState(repo *fakeTicketRepo, techs *fakeTechnicianRepo, dispatcher events.Dispatcher, changes events.ChangeStream, clock *testClock) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:     repo,
		TechnicianRepo: techs,
		Dispatcher:     dispatcher,
		Changes:        changes,
		Policy:         testPolicy(),
		Logger:         zap.NewNop(),
		Now:            clock.Now,
	})
}

var (
	operatorActor   = domain.Actor{Type: domain.SubjectTypeOperator, ID: "op-1"}
	technicianActor = domain.Actor{Type: domain.SubjectTypeTechnician, ID: "tech-1"}
	overrideActor   = domain.Actor{Type: domain.SubjectTypeTechnician, ID: "tech-1", OverrideTimeGate: true}
)
