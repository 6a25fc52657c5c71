package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/repository"
)

// memState is the whole database of the in-memory store.
type memState struct {
	calendars map[string]models.Calendar
	teachers  map[string]models.Teacher
	slots     map[string]models.AvailabilitySlot
	bookings  []models.Booking
}

func (s *memState) clone() *memState {
	out := &memState{
		calendars: make(map[string]models.Calendar, len(s.calendars)),
		teachers:  make(map[string]models.Teacher, len(s.teachers)),
		slots:     make(map[string]models.AvailabilitySlot, len(s.slots)),
		bookings:  append([]models.Booking(nil), s.bookings...),
	}
	for k, v := range s.calendars {
		out.calendars[k] = v
	}
	for k, v := range s.teachers {
		out.teachers[k] = v
	}
	for k, v := range s.slots {
		v.Exceptions = append([]models.SlotException(nil), v.Exceptions...)
		out.slots[k] = v
	}
	return out
}

func (s *memState) dropBookingsOf(slotID string) {
	kept := s.bookings[:0]
	for _, b := range s.bookings {
		if b.AvailabilitySlotID != slotID {
			kept = append(kept, b)
		}
	}
	s.bookings = kept
}

// memoryDB serializes admissions and commits availability edits all-or-nothing.
type memoryDB struct {
	mu            sync.Mutex
	state         *memState
	admitFailures int
	admitCalls    int
	editFailures  int
	duplicateCode int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{state: &memState{
		calendars: map[string]models.Calendar{},
		teachers:  map[string]models.Teacher{},
		slots:     map[string]models.AvailabilitySlot{},
	}}
}

func (m *memoryDB) addCalendar(c models.Calendar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.calendars[c.ID] = c
}

func (m *memoryDB) addSlot(s models.AvailabilitySlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.slots[s.ID] = s
}

func (m *memoryDB) addBooking(b models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.state.bookings = append(m.state.bookings, b)
}

func (m *memoryDB) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.bookings)
}

func (m *memoryDB) allSlots(calendarID string) []models.AvailabilitySlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.slotsOf(calendarID, false)
}

func (s *memState) slotsOf(calendarID string, permanentOnly bool) []models.AvailabilitySlot {
	var out []models.AvailabilitySlot
	for _, slot := range s.slots {
		if slot.CalendarID != calendarID || (permanentOnly && !slot.IsPermanent()) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		if out[i].PeriodNumber != out[j].PeriodNumber {
			return out[i].PeriodNumber < out[j].PeriodNumber
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// calendar store

func (m *memoryDB) FindByID(ctx context.Context, id string) (*models.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.calendars[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memoryDB) FindByCode(ctx context.Context, code string) (*models.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.calendars {
		if c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryDB) ListByTeacher(ctx context.Context, teacherID string) ([]models.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Calendar
	for _, c := range m.state.calendars {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryDB) CreateWithSlots(ctx context.Context, teacher *models.Teacher, calendar *models.Calendar, slots []models.SlotKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duplicateCode > 0 {
		m.duplicateCode--
		return repository.ErrDuplicateCode
	}
	for _, c := range m.state.calendars {
		if c.Code == calendar.Code {
			return repository.ErrDuplicateCode
		}
	}
	m.state.teachers[teacher.ID] = *teacher
	calendar.ID = uuid.NewString()
	calendar.TeacherID = teacher.ID
	calendar.IsActive = true
	m.state.calendars[calendar.ID] = *calendar
	for _, key := range slots {
		id := uuid.NewString()
		m.state.slots[id] = models.AvailabilitySlot{ID: id, CalendarID: calendar.ID, DayOfWeek: key.DayOfWeek, PeriodNumber: key.PeriodNumber}
	}
	return nil
}

func (m *memoryDB) Update(ctx context.Context, calendar *models.Calendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.calendars[calendar.ID]; !ok {
		return sql.ErrNoRows
	}
	m.state.calendars[calendar.ID] = *calendar
	return nil
}

func (m *memoryDB) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.calendars[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.state.calendars, id)
	for slotID, slot := range m.state.slots {
		if slot.CalendarID == id {
			delete(m.state.slots, slotID)
			m.state.dropBookingsOf(slotID)
		}
	}
	return nil
}

func (m *memoryDB) TeacherName(ctx context.Context, teacherID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.teachers[teacherID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return t.FullName, nil
}

// availability store

func (m *memoryDB) Edit(ctx context.Context, now time.Time, fn func(repository.AvailabilityEditor) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editFailures > 0 {
		m.editFailures--
		return &pq.Error{Code: "40P01"}
	}
	draft := m.state.clone()
	if err := fn(&memEditor{state: draft, now: now}); err != nil {
		return err
	}
	m.state = draft
	return nil
}

type memEditor struct {
	state *memState
	now   time.Time
}

func (e *memEditor) LockCalendar(ctx context.Context, calendarID string) (*models.Calendar, error) {
	c, ok := e.state.calendars[calendarID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (e *memEditor) PermanentSlots(ctx context.Context, calendarID string) ([]models.AvailabilitySlot, error) {
	return e.state.slotsOf(calendarID, true), nil
}

func (e *memEditor) HasBookings(ctx context.Context, slotID string, from models.Date, to *models.Date) (bool, error) {
	for _, b := range e.state.bookings {
		if b.AvailabilitySlotID != slotID || b.Date.Before(from.Time) {
			continue
		}
		if to != nil && b.Date.After(to.Time) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (e *memEditor) DeleteSlots(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(e.state.slots, id)
		e.state.dropBookingsOf(id)
	}
	return nil
}

func (e *memEditor) InsertSlots(ctx context.Context, slots []models.AvailabilitySlot) error {
	for _, slot := range slots {
		slot.ID = uuid.NewString()
		slot.CreatedAt = e.now
		e.state.slots[slot.ID] = slot
	}
	return nil
}

func (e *memEditor) ReplaceExceptions(ctx context.Context, slotID string, start, end models.Date) error {
	slot, ok := e.state.slots[slotID]
	if !ok {
		return errors.New("slot missing")
	}
	kept := slot.Exceptions[:0]
	for _, ex := range slot.Exceptions {
		if ex.StartDate.After(end.Time) || ex.EndDate.Before(start.Time) {
			kept = append(kept, ex)
		}
	}
	slot.Exceptions = append(kept, models.SlotException{ID: uuid.NewString(), SlotID: slotID, StartDate: start, EndDate: end, CreatedAt: e.now})
	e.state.slots[slotID] = slot
	return nil
}

func (e *memEditor) ClearExceptions(ctx context.Context, slotID string, start, end models.Date) (int, error) {
	slot := e.state.slots[slotID]
	kept := slot.Exceptions[:0]
	cleared := 0
	for _, ex := range slot.Exceptions {
		if !ex.StartDate.Before(start.Time) && !ex.EndDate.After(end.Time) {
			cleared++
			continue
		}
		kept = append(kept, ex)
	}
	slot.Exceptions = kept
	e.state.slots[slotID] = slot
	return cleared, nil
}

func (e *memEditor) ReplaceTemporary(ctx context.Context, calendarID string, key models.SlotKey, start, end models.Date) (bool, error) {
	for id, slot := range e.state.slots {
		if slot.CalendarID != calendarID || slot.Key() != key || slot.IsPermanent() {
			continue
		}
		if slot.ValidFrom.Equal(start.Time) && slot.ValidUntil.Equal(end.Time) {
			return false, nil
		}
		if !slot.ValidFrom.After(end.Time) && !slot.ValidUntil.Before(start.Time) {
			delete(e.state.slots, id)
			e.state.dropBookingsOf(id)
		}
	}
	from, until := start, end
	id := uuid.NewString()
	e.state.slots[id] = models.AvailabilitySlot{ID: id, CalendarID: calendarID, DayOfWeek: key.DayOfWeek, PeriodNumber: key.PeriodNumber, ValidFrom: &from, ValidUntil: &until, CreatedAt: e.now}
	return true, nil
}

// memSlots serves slot reads.
type memSlots struct {
	*memoryDB
}

func (s memSlots) ListByCalendar(ctx context.Context, calendarID string) ([]models.AvailabilitySlot, error) {
	return s.allSlots(calendarID), nil
}

func (s memSlots) ListPermanentByCalendars(ctx context.Context, calendarIDs []string) (map[string][]models.AvailabilitySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]models.AvailabilitySlot, len(calendarIDs))
	for _, id := range calendarIDs {
		out[id] = s.state.slotsOf(id, true)
	}
	return out, nil
}

// memBookings serves booking reads and admissions.
type memBookings struct {
	*memoryDB
}

func (b memBookings) Admit(ctx context.Context, slotID string, date models.Date, decide repository.AdmissionDecision) (*models.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.admitCalls++
	if b.admitFailures > 0 {
		b.admitFailures--
		return nil, &pq.Error{Code: "40001"}
	}

	var snapshot repository.AdmissionSnapshot
	if slot, ok := b.state.slots[slotID]; ok {
		calendar := b.state.calendars[slot.CalendarID]
		snapshot.Slot = &slot
		snapshot.Calendar = &calendar
		for _, other := range b.state.slots {
			if other.ID != slot.ID && other.CalendarID == slot.CalendarID && other.Key() == slot.Key() {
				snapshot.Siblings = append(snapshot.Siblings, other)
			}
		}
		for _, existing := range b.state.bookings {
			if existing.AvailabilitySlotID == slotID && existing.Date.Equal(date.Time) {
				snapshot.Bookings = append(snapshot.Bookings, existing)
			}
		}
	}

	booking, err := decide(snapshot)
	if err != nil {
		return nil, err
	}
	booking.ID = uuid.NewString()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	b.state.bookings = append(b.state.bookings, *booking)
	return booking, nil
}

func (b memBookings) ListByCalendar(ctx context.Context, q repository.BookingQuery) ([]models.BookingView, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BookingView
	for _, booking := range b.state.bookings {
		slot, ok := b.state.slots[booking.AvailabilitySlotID]
		if !ok || slot.CalendarID != q.CalendarID {
			continue
		}
		if q.From != nil && booking.Date.Before(q.From.Time) {
			continue
		}
		if q.To != nil && booking.Date.After(q.To.Time) {
			continue
		}
		out = append(out, models.BookingView{Booking: booking, CalendarID: slot.CalendarID, DayOfWeek: slot.DayOfWeek, PeriodNumber: slot.PeriodNumber})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].PeriodNumber < out[j].PeriodNumber
	})
	total := len(out)
	if q.Limit > 0 {
		if q.Offset >= len(out) {
			return []models.BookingView{}, total, nil
		}
		end := q.Offset + q.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[q.Offset:end]
	}
	return out, total, nil
}

func (b memBookings) Occupancy(ctx context.Context, calendarID string, from, to models.Date) ([]models.SlotOccupancy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	index := map[string]int{}
	var out []models.SlotOccupancy
	for _, booking := range b.state.bookings {
		slot, ok := b.state.slots[booking.AvailabilitySlotID]
		if !ok || slot.CalendarID != calendarID || booking.Date.Before(from.Time) || booking.Date.After(to.Time) {
			continue
		}
		key := booking.AvailabilitySlotID + ":" + booking.Date.String()
		if i, ok := index[key]; ok {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, models.SlotOccupancy{AvailabilitySlotID: booking.AvailabilitySlotID, Date: booking.Date, StudentGrade: booking.StudentGrade, Count: 1})
	}
	return out, nil
}

func (b memBookings) FindOwner(ctx context.Context, bookingID string) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, booking := range b.state.bookings {
		if booking.ID == bookingID {
			slot := b.state.slots[booking.AvailabilitySlotID]
			calendar := b.state.calendars[slot.CalendarID]
			return calendar.TeacherID, calendar.ID, nil
		}
	}
	return "", "", sql.ErrNoRows
}

func (b memBookings) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, booking := range b.state.bookings {
		if booking.ID == id {
			b.state.bookings = append(b.state.bookings[:i], b.state.bookings[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}
