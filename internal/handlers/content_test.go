package handlers

import (
	"net/http"
	"testing"

	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/testutil"
)

func TestDoctorsDirectory(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "POST", "/api/admin/doctor", CreateDoctorRequest{
		FirstName: "Meredith",
		LastName:  "Grey",
		Email:     "grey@healthnexus.test",
		Password:  "surgery123",
		Specialty: "General Surgery",
		Fee:       120,
	}, env.admin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var created envelope[models.UserSanitized]
	testutil.AssertJSON(t, w, &created)
	if created.Value.Role != models.RoleDoctor {
		t.Errorf("Expected doctor role, got %q", created.Value.Role)
	}

	w = env.do(t, "GET", "/api/doctors", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var list envelope[[]models.UserSanitized]
	testutil.AssertJSON(t, w, &list)
	if len(list.Doctors) != 2 {
		t.Fatalf("Expected 2 doctors under \"doctors\", got %d", len(list.Doctors))
	}

	w = env.do(t, "GET", "/api/doctors?specialty=General+Surgery", nil, nil)
	list = envelope[[]models.UserSanitized]{}
	testutil.AssertJSON(t, w, &list)
	if len(list.Doctors) != 1 || list.Doctors[0].LastName != "Grey" {
		t.Errorf("Expected specialty filter to match Grey, got %+v", list.Doctors)
	}

	fee := 150
	w = env.do(t, "PUT", "/api/admin/doctor/"+created.Value.ID, UpdateDoctorRequest{Fee: &fee}, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var updated envelope[models.UserSanitized]
	testutil.AssertJSON(t, w, &updated)
	if updated.Value.Fee != 150 || updated.Value.Specialty != "General Surgery" {
		t.Errorf("Expected partial update, got %+v", updated.Value)
	}

	w = env.do(t, "POST", "/api/admin/doctor", CreateDoctorRequest{
		FirstName: "Dup", LastName: "Licate", Email: "grey@healthnexus.test", Password: "surgery123", Specialty: "x",
	}, env.admin)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	testutil.CreateTestAppointment(t, env.db, env.patient.ID, created.Value.ID, "Scheduled")
	w = env.do(t, "DELETE", "/api/admin/doctor/"+created.Value.ID, nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var remaining int64
	env.db.Model(&models.Appointment{}).Where("doctor_id = ?", created.Value.ID).Count(&remaining)
	if remaining != 0 {
		t.Errorf("Expected the doctor's appointments to be removed, %d left", remaining)
	}

	w = env.do(t, "DELETE", "/api/admin/doctor/"+env.patient.ID, nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestAdminPatients(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "GET", "/api/admin/patients", nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp envelope[[]models.UserSanitized]
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Value) != 1 || resp.Value[0].ID != env.patient.ID {
		t.Errorf("Expected only the patient, got %+v", resp.Value)
	}
}

func TestFeedback(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "POST", "/api/feedback", SubmitFeedbackRequest{Message: "Great care", Rating: 5, DoctorID: env.doctor.ID}, env.patient)
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = env.do(t, "POST", "/api/feedback", SubmitFeedbackRequest{Message: "Too many stars", Rating: 9}, env.patient)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = env.do(t, "POST", "/api/feedback", SubmitFeedbackRequest{Message: "From a doctor"}, env.doctor)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = env.do(t, "GET", "/api/admin/feedback", nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp envelope[[]models.FeedbackView]
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Feedback) != 1 {
		t.Fatalf("Expected 1 feedback under \"feedback\", got %d", len(resp.Feedback))
	}
	if resp.Feedback[0].PatientEmail != env.patient.Email {
		t.Errorf("Expected patient email on the view, got %q", resp.Feedback[0].PatientEmail)
	}
}

func TestNewsLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	title, content, category := "Flu clinic", "Walk-in shots all week", "Announcement"
	published := false
	w := env.do(t, "POST", "/api/admin/news", NewsRequest{Title: &title, Content: &content, Category: &category, Published: &published}, env.admin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var created envelope[models.News]
	testutil.AssertJSON(t, w, &created)
	if created.Value.Category != "announcement" {
		t.Errorf("Expected lower-cased category, got %q", created.Value.Category)
	}

	var public envelope[[]models.News]
	w = env.do(t, "GET", "/api/news", nil, nil)
	testutil.AssertJSON(t, w, &public)
	if len(public.Value) != 0 {
		t.Errorf("Drafts must not be public, got %d", len(public.Value))
	}

	published = true
	w = env.do(t, "PUT", "/api/admin/news/"+created.Value.ID, NewsRequest{Published: &published}, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)

	public = envelope[[]models.News]{}
	w = env.do(t, "GET", "/api/news?category=announcement", nil, nil)
	testutil.AssertJSON(t, w, &public)
	if len(public.Value) != 1 || public.Value[0].Title != title {
		t.Errorf("Expected the published article, got %+v", public.Value)
	}

	empty := "  "
	w = env.do(t, "PUT", "/api/admin/news/"+created.Value.ID, NewsRequest{Title: &empty}, env.admin)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = env.do(t, "DELETE", "/api/admin/news/"+created.Value.ID, nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	w = env.do(t, "DELETE", "/api/admin/news/"+created.Value.ID, nil, env.admin)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestReports(t *testing.T) {
	env := setupTestEnv(t)
	appt := testutil.CreateTestAppointment(t, env.db, env.patient.ID, env.doctor.ID, "Completed")

	w := env.do(t, "POST", "/api/report", CreateReportRequest{
		PatientID:     env.patient.ID,
		AppointmentID: appt.ID,
		ReportType:    models.ReportTypeConsultation,
		Title:         "Follow-up",
		Diagnosis:     "Healthy",
	}, env.doctor)
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = env.do(t, "POST", "/api/report", CreateReportRequest{
		PatientID: env.patient.ID, ReportType: models.ReportTypeConsultation, Title: "x", Diagnosis: "y",
	}, env.patient)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = env.do(t, "GET", "/api/report/p/"+env.patient.ID, nil, env.patient)
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp envelope[[]models.Report]
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Value) != 1 || resp.Value[0].DoctorID != env.doctor.ID {
		t.Errorf("Expected the doctor's report, got %+v", resp.Value)
	}
}
