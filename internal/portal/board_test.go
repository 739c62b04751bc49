package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/logging"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/routes"
	"healthnexus-portal/internal/session"
	"healthnexus-portal/internal/status"
	"healthnexus-portal/internal/store"
	"healthnexus-portal/internal/testutil"
)

type portalEnv struct {
	client  *Client
	session *session.Session
	kv      *store.MemoryStore
	patient *models.User
	doctor  *models.User
	admin   *models.User
	appt    *models.Appointment
}

// setupPortal serves the real API from an in-memory database.
func setupPortal(t *testing.T) *portalEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	rec := activity.NewRecorder(db, activity.NewHub(8), logging.Discard())
	router := gin.New()
	routes.SetupRoutes(router, db, testutil.GetTestConfig(), rec)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	env := &portalEnv{
		kv:      store.NewMemoryStore(),
		patient: testutil.CreateTestUser(t, db, models.RolePatient, "patient@healthnexus.test"),
		doctor:  testutil.CreateTestUser(t, db, models.RoleDoctor, "doctor@healthnexus.test"),
		admin:   testutil.CreateTestUser(t, db, models.RoleAdmin, "admin@healthnexus.test"),
	}
	env.appt = testutil.CreateTestAppointment(t, db, env.patient.ID, env.doctor.ID, "Scheduled")
	env.session = session.New(env.kv, logging.Discard())
	env.client = NewClient(server.URL+"/api", env.session, logging.Discard())
	return env
}

func (e *portalEnv) login(t *testing.T, role session.Role, email string) User {
	t.Helper()
	ctx := context.Background()
	res, err := e.client.Login(ctx, role, email, testutil.TestPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := e.session.Login(ctx, res.User.Entity(), res.Token); err != nil {
		t.Fatalf("Session login failed: %v", err)
	}
	return res.User
}

func TestPatientCancelsPendingAppointment(t *testing.T) {
	env := setupPortal(t)
	ctx := context.Background()
	user := env.login(t, session.RolePatient, env.patient.Email)

	board := NewPatientBoard(env.client, user.ID, logging.Discard())
	if err := board.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rows := board.Rows()
	if len(rows) != 1 {
		t.Fatalf("Expected 1 appointment, got %d", len(rows))
	}
	if rows[0].Appointment.Status != "Scheduled" || rows[0].Status != status.Pending {
		t.Errorf("Expected Scheduled to render as pending, got raw %q canonical %q", rows[0].Appointment.Status, rows[0].Status)
	}
	if rows[0].DoctorName == "" {
		t.Error("Expected the doctor's name on the listing")
	}
	if len(board.Pending()) != 1 {
		t.Fatalf("Expected 1 pending appointment, got %d", len(board.Pending()))
	}

	out := board.Cancel(ctx, env.appt.ID)
	if !out.Success || out.AppliedVia != 0 || out.Removed {
		t.Fatalf("Expected cancel via the path-style endpoint, got %+v", out)
	}
	if len(board.Pending()) != 0 {
		t.Errorf("Expected the appointment to leave the pending list, got %+v", board.Pending())
	}
	if counts := board.Counts(); counts[status.Cancelled] != 1 {
		t.Errorf("Expected 1 cancelled appointment, got %v", counts)
	}

	// The server agrees.
	appts, err := env.client.PatientAppointments(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(appts) != 1 || appts[0].Canonical() != status.Cancelled {
		t.Errorf("Expected the stored appointment to be cancelled, got %+v", appts)
	}
}

func TestAdminBoard(t *testing.T) {
	env := setupPortal(t)
	ctx := context.Background()
	env.login(t, session.RoleAdmin, env.admin.Email)

	board := NewAdminBoard(env.client, logging.Discard())
	if err := board.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rows := board.Rows(); len(rows) != 1 || rows[0].PatientName == "" {
		t.Fatalf("Expected the appointment with its patient name, got %+v", rows)
	}

	out := board.SetStatus(ctx, env.appt.ID, "Confirmed")
	if !out.Success {
		t.Fatalf("Expected confirm to succeed, got %+v", out)
	}
	if rows := board.Rows(); rows[0].Status != status.Confirmed || rows[0].Appointment.Status != "Confirmed" {
		t.Errorf("Expected the row patched in place, got %+v", rows[0])
	}

	out = board.SetStatus(ctx, env.appt.ID, "Teleported")
	if out.Success {
		t.Errorf("Expected an unknown status to be refused, got %+v", out)
	}
	if rows := board.Rows(); rows[0].Status != status.Confirmed {
		t.Errorf("Failed change must leave the row alone, got %+v", rows[0])
	}
}

func TestImpersonatedPatientBoard(t *testing.T) {
	env := setupPortal(t)
	ctx := context.Background()
	env.login(t, session.RoleAdmin, env.admin.Email)

	res, err := env.client.Impersonate(ctx, session.RolePatient, env.patient.ID)
	if err != nil {
		t.Fatalf("Impersonate failed: %v", err)
	}
	target := res.User.Entity()
	target.Token = res.Token
	if err := env.session.StartImpersonation(ctx, target); err != nil {
		t.Fatal(err)
	}
	if env.session.BearerToken(ctx) != res.Token {
		t.Fatal("Expected requests to carry the impersonation token")
	}

	board := NewPatientBoard(env.client, target.ID, logging.Discard())
	if err := board.Load(ctx); err != nil {
		t.Fatalf("Load as impersonated patient failed: %v", err)
	}
	if len(board.Pending()) != 1 {
		t.Errorf("Expected the patient's pending appointment, got %+v", board.Rows())
	}
}

func TestBoardDiscardsLoadAfterClose(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]Appointment, error) {
		<-release
		return []Appointment{{ID: "a1", Status: "Scheduled"}}, nil
	}
	board := newBoard(fetch, NewOrchestrator(nil, logging.Discard()), logging.Discard().WithField("board", "test"))

	done := make(chan error)
	go func() { done <- board.Load(context.Background()) }()
	board.Close()
	close(release)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if rows := board.Rows(); len(rows) != 0 {
		t.Errorf("Expected the late result to be dropped, got %+v", rows)
	}
}

func TestBoardRemovesRowWhenDeleted(t *testing.T) {
	fetch := func(ctx context.Context) ([]Appointment, error) {
		return []Appointment{{ID: "a1", Status: "pending"}, {ID: "a2", Status: "Confirmed"}}, nil
	}
	paths := []Path{{
		Name:    "delete",
		Removes: true,
		Attempt: func(context.Context, string, string) error { return nil },
	}}
	board := newBoard(fetch, NewOrchestrator(paths, logging.Discard()), logging.Discard().WithField("board", "test"))
	if err := board.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	out := board.Cancel(context.Background(), "a1")
	if !out.Success || !out.Removed {
		t.Fatalf("Expected removal, got %+v", out)
	}
	rows := board.Rows()
	if len(rows) != 1 || rows[0].ID != "a2" {
		t.Errorf("Expected only a2 left, got %+v", rows)
	}
}

func TestClientReadsNamedPayloadFields(t *testing.T) {
	_, client := newFakeAPI(t, func(r *http.Request) (int, string) {
		switch r.URL.Path {
		case "/api/admin/appointments":
			return http.StatusOK, `{"msg":"Success","appointments":[{"id":"a1","status":"canceled"}]}`
		case "/api/doctors":
			return http.StatusOK, `{"msg":"Success","doctors":[{"id":"d1","role":"doctor","specialty":"Cardiology"}]}`
		}
		return http.StatusNotFound, `{"msg":"Not found"}`
	})
	ctx := context.Background()

	appts, err := client.AdminAppointments(ctx)
	if err != nil || len(appts) != 1 || appts[0].Canonical() != status.Cancelled {
		t.Errorf("Expected one cancelled appointment, got %+v err=%v", appts, err)
	}
	docs, err := client.Doctors(ctx)
	if err != nil || len(docs) != 1 || docs[0].Specialty != "Cardiology" {
		t.Errorf("Expected one doctor, got %+v err=%v", docs, err)
	}
	if _, err := client.News(ctx); err == nil {
		t.Error("Expected an API error for a 404")
	}
}
