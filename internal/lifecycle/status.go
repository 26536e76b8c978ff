package lifecycle

type AppointmentStatus string

// Appointment transitions:
//
//	scheduled → in_progress → completed
//	scheduled → cancelled
//	scheduled → no_show
const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentNoShow     AppointmentStatus = "no_show"
)

// Occupies reports whether an appointment in this status holds its slot.
func (s AppointmentStatus) Occupies() bool {
	return s != AppointmentCancelled
}

type AdmissionStatus string

const (
	AdmissionAdmitted    AdmissionStatus = "admitted"
	AdmissionDischarged  AdmissionStatus = "discharged"
	AdmissionTransferred AdmissionStatus = "transferred"
)

type LabOrderStatus string

const (
	LabOrderOrdered    LabOrderStatus = "ordered"
	LabOrderCollected  LabOrderStatus = "collected"
	LabOrderInProgress LabOrderStatus = "in_progress"
	LabOrderCompleted  LabOrderStatus = "completed"
	LabOrderCancelled  LabOrderStatus = "cancelled"
)

type PrescriptionStatus string

const (
	PrescriptionActive    PrescriptionStatus = "active"
	PrescriptionOnHold    PrescriptionStatus = "on_hold"
	PrescriptionCompleted PrescriptionStatus = "completed"
	PrescriptionCancelled PrescriptionStatus = "cancelled"
)

func Appointments() *FSM[AppointmentStatus] {
	return NewFSM("appointment", map[AppointmentStatus][]AppointmentStatus{
		AppointmentScheduled:  {AppointmentInProgress, AppointmentCancelled, AppointmentNoShow},
		AppointmentInProgress: {AppointmentCompleted},
	})
}

func Admissions() *FSM[AdmissionStatus] {
	return NewFSM("admission", map[AdmissionStatus][]AdmissionStatus{
		AdmissionAdmitted: {AdmissionDischarged, AdmissionTransferred},
	})
}

func LabOrders() *FSM[LabOrderStatus] {
	return NewFSM("lab_order", map[LabOrderStatus][]LabOrderStatus{
		LabOrderOrdered:    {LabOrderCollected, LabOrderCancelled},
		LabOrderCollected:  {LabOrderInProgress, LabOrderCancelled},
		LabOrderInProgress: {LabOrderCompleted, LabOrderCancelled},
	})
}

// Prescriptions can be put on hold; a held prescription is then completed or cancelled.
func Prescriptions() *FSM[PrescriptionStatus] {
	return NewFSM("prescription", map[PrescriptionStatus][]PrescriptionStatus{
		PrescriptionActive: {PrescriptionCompleted, PrescriptionCancelled, PrescriptionOnHold},
		PrescriptionOnHold: {PrescriptionCompleted, PrescriptionCancelled},
	})
}
