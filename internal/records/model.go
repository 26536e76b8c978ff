// Package records manages clinical records that follow a status lifecycle
// without occupying calendar slots: admissions, lab orders and prescriptions.
package records

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-availability-scheduling/internal/lifecycle"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownKind    = errors.New("unknown record kind")
	ErrInvalidRecord  = errors.New("invalid record")
)

type Kind string

const (
	KindAdmission    Kind = "admission"
	KindLabOrder     Kind = "lab_order"
	KindPrescription Kind = "prescription"
)

// Record is one clinical record. Fields holds the free-form clinical content.
type Record struct {
	ID            uuid.UUID         `json:"id"`
	Kind          Kind              `json:"kind"`
	PatientID     uuid.UUID         `json:"patient_id"`
	ProviderID    uuid.UUID         `json:"provider_id"`
	AppointmentID *uuid.UUID        `json:"appointment_id,omitempty"`
	Status        string            `json:"status"`
	Urgent        bool              `json:"urgent"`
	Fields        map[string]string `json:"fields"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type machine interface {
	entity() string
	initial() string
	check(from, to string) error
	known(status string) bool
}

type fsmMachine[S ~string] struct {
	fsm   *lifecycle.FSM[S]
	start S
}

func (m fsmMachine[S]) entity() string  { return m.fsm.Entity() }
func (m fsmMachine[S]) initial() string { return string(m.start) }

func (m fsmMachine[S]) check(from, to string) error {
	_, err := m.fsm.Transition(S(from), S(to))
	return err
}

func (m fsmMachine[S]) known(status string) bool { return m.fsm.Known(S(status)) }

type kindSpec struct {
	machine  machine
	required []string
}

var kinds = map[Kind]kindSpec{
	KindAdmission: {
		machine:  fsmMachine[lifecycle.AdmissionStatus]{fsm: lifecycle.Admissions(), start: lifecycle.AdmissionAdmitted},
		required: []string{"ward"},
	},
	KindLabOrder: {
		machine:  fsmMachine[lifecycle.LabOrderStatus]{fsm: lifecycle.LabOrders(), start: lifecycle.LabOrderOrdered},
		required: []string{"test"},
	},
	KindPrescription: {
		machine:  fsmMachine[lifecycle.PrescriptionStatus]{fsm: lifecycle.Prescriptions(), start: lifecycle.PrescriptionActive},
		required: []string{"medication", "dosage"},
	},
}

// ParseKind accepts the kind names and their plural URL forms.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "admission", "admissions":
		return KindAdmission, nil
	case "lab_order", "lab-order", "lab-orders", "lab_orders":
		return KindLabOrder, nil
	case "prescription", "prescriptions":
		return KindPrescription, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func specFor(k Kind) (kindSpec, error) {
	spec, ok := kinds[k]
	if !ok {
		return kindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return spec, nil
}
