package handlers

import (
	"net/http"
	"testing"

	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/testutil"
	"healthnexus-portal/internal/utils"
)

func TestCreateAppointment(t *testing.T) {
	env := setupTestEnv(t)
	other := testutil.CreateTestUser(t, env.db, models.RolePatient, "other@healthnexus.test")

	tests := []struct {
		name           string
		as             *models.User
		body           map[string]interface{}
		expectedStatus int
	}{
		{
			name:           "patient books for self",
			as:             env.patient,
			body:           map[string]interface{}{"doctorId": env.doctor.ID, "date": "2025-06-01", "slot": "09:00-09:30"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "patient cannot book for someone else",
			as:             env.patient,
			body:           map[string]interface{}{"doctorId": env.doctor.ID, "patientId": other.ID, "date": "2025-06-01", "slot": "09:00-09:30"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "admin must name the patient",
			as:             env.admin,
			body:           map[string]interface{}{"doctorId": env.doctor.ID, "date": "2025-06-01", "slot": "09:00-09:30"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown doctor",
			as:             env.patient,
			body:           map[string]interface{}{"doctorId": env.patient.ID, "date": "2025-06-01", "slot": "09:00-09:30"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing slot",
			as:             env.patient,
			body:           map[string]interface{}{"doctorId": env.doctor.ID, "date": "2025-06-01"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/app", tt.body, tt.as)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}

	var resp envelope[models.AppointmentView]
	w := env.do(t, "POST", "/api/app", map[string]interface{}{
		"doctorId": env.doctor.ID, "date": "2025-06-02", "slot": "10:00-10:30",
	}, env.patient)
	testutil.AssertJSON(t, w, &resp)
	if resp.Value.Status != models.StatusScheduled {
		t.Errorf("Expected new booking to be %q, got %q", models.StatusScheduled, resp.Value.Status)
	}
	if resp.Value.DoctorName != "Dr. Test doctor" {
		t.Errorf("Expected doctor name in view, got %q", resp.Value.DoctorName)
	}
}

func TestAdminAppointmentsUseBothFields(t *testing.T) {
	env := setupTestEnv(t)
	testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")
	testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "confirmed")

	w := env.do(t, "GET", "/api/admin/appointments", nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp envelope[[]models.AppointmentView]
	testutil.AssertJSON(t, w, &resp)
	if resp.Msg != utils.MsgSuccess {
		t.Errorf("Expected msg Success, got %q", resp.Msg)
	}
	if len(resp.Appointments) != 2 || len(resp.Value) != 2 {
		t.Errorf("Expected 2 appointments in both fields, got %d and %d", len(resp.Appointments), len(resp.Value))
	}
}

func TestPatientAppointmentsOwnership(t *testing.T) {
	env := setupTestEnv(t)
	other := testutil.CreateTestUser(t, env.db, models.RolePatient, "other@healthnexus.test")
	testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")

	w := env.do(t, "GET", "/api/app/p/"+env.patient.ID, nil, env.patient)
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp envelope[[]models.AppointmentView]
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Value) != 1 {
		t.Errorf("Expected 1 appointment, got %d", len(resp.Value))
	}

	w = env.do(t, "GET", "/api/app/p/"+env.patient.ID, nil, other)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = env.do(t, "GET", "/api/app/p/"+env.patient.ID, nil, env.doctor)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestUpdateStatusEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("path style keeps the raw spelling", func(t *testing.T) {
		appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")
		w := env.do(t, "PUT", "/api/app/status/Canceled/"+appt.ID, nil, env.patient)
		testutil.AssertStatus(t, w, http.StatusOK)

		var stored models.Appointment
		env.db.First(&stored, "id = ?", appt.ID)
		if stored.Status != "Canceled" {
			t.Errorf("Expected stored status Canceled, got %q", stored.Status)
		}
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")
		w := env.do(t, "PUT", "/api/app/status/Archived/"+appt.ID, nil, env.admin)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("admin body style is admin only", func(t *testing.T) {
		appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")
		body := map[string]string{"status": "Confirmed"}

		w := env.do(t, "PUT", "/api/admin/appointment/"+appt.ID, body, env.patient)
		testutil.AssertStatus(t, w, http.StatusForbidden)

		w = env.do(t, "PUT", "/api/admin/appointment/"+appt.ID, body, env.admin)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp envelope[models.AppointmentView]
		testutil.AssertJSON(t, w, &resp)
		if resp.Value.Status != "Confirmed" {
			t.Errorf("Expected Confirmed, got %q", resp.Value.Status)
		}
	})

	t.Run("generic body style for the owning patient", func(t *testing.T) {
		appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")
		w := env.do(t, "PUT", "/api/app/"+appt.ID, map[string]string{"slot": "11:00-11:30"}, env.patient)
		testutil.AssertStatus(t, w, http.StatusOK)

		other := testutil.CreateTestUser(t, env.db, models.RolePatient, "intruder@healthnexus.test")
		w = env.do(t, "PUT", "/api/app/"+appt.ID, map[string]string{"status": "Cancelled"}, other)
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")
		w := env.do(t, "PUT", "/api/app/"+appt.ID, map[string]string{}, env.admin)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("missing appointment", func(t *testing.T) {
		w := env.do(t, "PUT", "/api/app/status/Confirmed/does-not-exist", nil, env.admin)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestDeleteAppointmentRecordsActivity(t *testing.T) {
	env := setupTestEnv(t)
	appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Scheduled")

	live, cancel := env.hub.Subscribe()
	defer cancel()

	w := env.do(t, "DELETE", "/api/app/"+appt.ID, nil, env.patient)
	testutil.AssertStatus(t, w, http.StatusOK)

	var count int64
	env.db.Model(&models.Appointment{}).Where("id = ?", appt.ID).Count(&count)
	if count != 0 {
		t.Error("Expected appointment to be deleted")
	}

	select {
	case e := <-live:
		if e.Type != "appointment" {
			t.Errorf("Expected appointment activity, got %q", e.Type)
		}
	default:
		t.Error("Expected an activity event for the deletion")
	}
}
