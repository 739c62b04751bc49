package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"healthnexus-portal/internal/config"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// TestJWTSecret signs every token issued in tests
const TestJWTSecret = "test-jwt-secret"

// TestPassword is the password of every user created by CreateTestUser
const TestPassword = "password123"

// SetupTestDB opens a private in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := models.InitDB(models.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Origin:               "http://localhost:3000",
		Environment:          "test",
		JWTSecret:            TestJWTSecret,
		JWTExpirationMinutes: 60,
		Database:             config.DatabaseConfig{Driver: "sqlite"},
		Log:                  config.LogConfig{Level: "error", Format: "text"},
		Activity: config.ActivityConfig{
			SnapshotSize:      20,
			HeartbeatInterval: 25 * time.Second,
		},
	}
}

// CreateTestUser stores a user with TestPassword and the given role
func CreateTestUser(t *testing.T, db *gorm.DB, role models.Role, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:     email,
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	}
	if role == models.RoleDoctor {
		user.Specialty = "Cardiology"
	}
	if err := user.SetPassword(TestPassword); err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestAppointment books an appointment with the given raw status
func CreateTestAppointment(t *testing.T, db *gorm.DB, patientID, doctorID, status string) *models.Appointment {
	t.Helper()

	appointment := &models.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		Slot:      "10:00-10:30",
		Status:    status,
	}
	if err := db.Create(appointment).Error; err != nil {
		t.Fatalf("Failed to create test appointment: %v", err)
	}
	return appointment
}

// TokenFor signs an access token for user
func TokenFor(t *testing.T, user *models.User) string {
	t.Helper()

	token, err := utils.GenerateToken(user, TestJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// AuthHeader builds the Authorization header for token
func AuthHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
