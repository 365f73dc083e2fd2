package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Directory used by the memory store and tests.
type Memory struct {
	mu         sync.RWMutex
	patients   map[uuid.UUID]Patient
	staff      map[uuid.UUID]Staff
	admissions map[uuid.UUID]RoomAdmission
	opd        map[uuid.UUID]OPDAppointment
	beds       map[uuid.UUID]EmergencyBedSlot
	bills      map[uuid.UUID]Bill

	// Err, when set, is returned from every lookup.
	Err error
}

func NewMemory() *Memory {
	return &Memory{
		patients:   make(map[uuid.UUID]Patient),
		staff:      make(map[uuid.UUID]Staff),
		admissions: make(map[uuid.UUID]RoomAdmission),
		opd:        make(map[uuid.UUID]OPDAppointment),
		beds:       make(map[uuid.UUID]EmergencyBedSlot),
		bills:      make(map[uuid.UUID]Bill),
	}
}

func (m *Memory) Load(f Fixtures) {
	for _, p := range f.Patients {
		m.AddPatient(p)
	}
	for _, s := range f.Staff {
		m.AddStaff(s)
	}
	for _, a := range f.RoomAdmissions {
		m.AddRoomAdmission(a)
	}
	for _, a := range f.OPDAppointments {
		m.AddOPDAppointment(a)
	}
	for _, b := range f.EmergencyBedSlots {
		m.AddEmergencyBedSlot(b)
	}
	for _, b := range f.Bills {
		m.AddBill(b)
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (m *Memory) AddPatient(p Patient) Patient {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = StatusActive
	}
	m.mu.Lock()
	m.patients[p.ID] = p
	m.mu.Unlock()
	return p
}

func (m *Memory) AddStaff(s Staff) Staff {
	ensureID(&s.ID)
	if s.Status == "" {
		s.Status = StatusActive
	}
	m.mu.Lock()
	m.staff[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Memory) AddRoomAdmission(a RoomAdmission) RoomAdmission {
	ensureID(&a.ID)
	m.mu.Lock()
	m.admissions[a.ID] = a
	m.mu.Unlock()
	return a
}

func (m *Memory) AddOPDAppointment(a OPDAppointment) OPDAppointment {
	ensureID(&a.ID)
	m.mu.Lock()
	m.opd[a.ID] = a
	m.mu.Unlock()
	return a
}

func (m *Memory) AddEmergencyBedSlot(b EmergencyBedSlot) EmergencyBedSlot {
	ensureID(&b.ID)
	m.mu.Lock()
	m.beds[b.ID] = b
	m.mu.Unlock()
	return b
}

func (m *Memory) AddBill(b Bill) Bill {
	ensureID(&b.ID)
	m.mu.Lock()
	m.bills[b.ID] = b
	m.mu.Unlock()
	return b
}

func lookup[T any](m *Memory, src map[uuid.UUID]T, id uuid.UUID) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := src[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *Memory) Patient(_ context.Context, id uuid.UUID) (*Patient, error) {
	return lookup(m, m.patients, id)
}

func (m *Memory) Staff(_ context.Context, id uuid.UUID) (*Staff, error) {
	return lookup(m, m.staff, id)
}

func (m *Memory) RoomAdmission(_ context.Context, id uuid.UUID) (*RoomAdmission, error) {
	return lookup(m, m.admissions, id)
}

func (m *Memory) OPDAppointment(_ context.Context, id uuid.UUID) (*OPDAppointment, error) {
	return lookup(m, m.opd, id)
}

func (m *Memory) EmergencyBedSlot(_ context.Context, id uuid.UUID) (*EmergencyBedSlot, error) {
	return lookup(m, m.beds, id)
}

func (m *Memory) Bill(_ context.Context, id uuid.UUID) (*Bill, error) {
	return lookup(m, m.bills, id)
}
