package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/domain/directory"
	"github.com/ehr/otsched/internal/platform/apperr"
)

func ptr[T any](v T) *T { return &v }

func TestSourceFields_Source(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		fields SourceFields
		want   PatientSource
		kind   error
	}{
		{"none", SourceFields{}, PatientSource{}, apperr.ErrPatientSourceMissing},
		{"nil ids ignored", SourceFields{PatientID: ptr(uuid.Nil)}, PatientSource{}, apperr.ErrPatientSourceMissing},
		{"direct", SourceFields{PatientID: &id}, PatientSource{Kind: SourceDirect, ID: id}, nil},
		{"admission", SourceFields{RoomAdmissionID: &id}, PatientSource{Kind: SourceRoomAdmission, ID: id}, nil},
		{"opd", SourceFields{OPDAppointmentID: &id}, PatientSource{Kind: SourceOPDAppointment, ID: id}, nil},
		{"bed", SourceFields{EmergencyBedSlotID: &id}, PatientSource{Kind: SourceEmergencyBedSlot, ID: id}, nil},
		{"tagged", SourceFields{PatientSource: &PatientSource{Kind: SourceOPDAppointment, ID: id}}, PatientSource{Kind: SourceOPDAppointment, ID: id}, nil},
		{"two flat", SourceFields{PatientID: &id, OPDAppointmentID: &id}, PatientSource{}, apperr.ErrAmbiguousPatientSource},
		{"tagged and flat", SourceFields{PatientSource: &PatientSource{Kind: SourceDirect, ID: id}, RoomAdmissionID: &id}, PatientSource{}, apperr.ErrAmbiguousPatientSource},
		{"bad kind", SourceFields{PatientSource: &PatientSource{Kind: "walk_in", ID: id}}, PatientSource{}, apperr.ErrValidation},
		{"tagged without id", SourceFields{PatientSource: &PatientSource{Kind: SourceDirect}}, PatientSource{}, apperr.ErrMissingRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fields.Source()
			if tt.kind != nil {
				if !errors.Is(err, tt.kind) {
					t.Fatalf("expected %v, got %v", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	dir := directory.NewMemory()
	p := dir.AddPatient(directory.Patient{FullName: "Asha Rao"})
	adm := dir.AddRoomAdmission(directory.RoomAdmission{PatientID: p.ID, RoomNo: "W2", BedNo: "4"})
	opd := dir.AddOPDAppointment(directory.OPDAppointment{PatientID: p.ID, TokenNo: "17"})
	bed := dir.AddEmergencyBedSlot(directory.EmergencyBedSlot{BedID: "ER-3", PatientID: &p.ID})
	emptyBed := dir.AddEmergencyBedSlot(directory.EmergencyBedSlot{BedID: "ER-4"})
	r := NewResolver(dir)
	ctx := context.Background()

	for _, src := range []PatientSource{
		{Kind: SourceDirect, ID: p.ID},
		{Kind: SourceRoomAdmission, ID: adm.ID},
		{Kind: SourceOPDAppointment, ID: opd.ID},
		{Kind: SourceEmergencyBedSlot, ID: bed.ID},
	} {
		got, err := r.Resolve(ctx, src)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", src.Kind, err)
		}
		if got != p.ID {
			t.Errorf("%s: resolved %s, want %s", src.Kind, got, p.ID)
		}
	}

	_, err := r.Resolve(ctx, PatientSource{Kind: SourceEmergencyBedSlot, ID: emptyBed.ID})
	if !errors.Is(err, apperr.ErrPatientSourceUnresolvable) {
		t.Errorf("empty bed: expected unresolvable, got %v", err)
	}
	_, err = r.Resolve(ctx, PatientSource{Kind: SourceRoomAdmission, ID: uuid.New()})
	if !errors.Is(err, apperr.ErrPatientSourceUnresolvable) {
		t.Errorf("unknown admission: expected unresolvable, got %v", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Field != "room_admission_id" {
		t.Errorf("expected field room_admission_id, got %q", ae.Field)
	}
}

func TestResolver_DependencyUnavailable(t *testing.T) {
	dir := directory.NewMemory()
	p := dir.AddPatient(directory.Patient{FullName: "Asha Rao"})
	dir.Err = errors.New("connection refused")

	got, err := NewResolver(dir).Resolve(context.Background(), PatientSource{Kind: SourceDirect, ID: p.ID})
	if !errors.Is(err, apperr.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
	if got != uuid.Nil {
		t.Errorf("expected no patient id on failure, got %s", got)
	}
}
