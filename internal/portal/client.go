// Package portal is the client side of the hospital portal: a REST client for
// the hospital API, the appointment boards the admin and patient views are
// built from, and the status update orchestration they share.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/session"
	"healthnexus-portal/internal/status"
	"healthnexus-portal/internal/ticker"
)

// MsgSuccess is the msg value the API sends on success.
const MsgSuccess = "Success"

// TokenSource supplies the bearer token for each request. *session.Session
// satisfies it.
type TokenSource interface {
	BearerToken(ctx context.Context) string
}

// Envelope is the response shape of every endpoint. The payload sits under
// "value" or, for some listings, under a named field.
type Envelope struct {
	Msg          string          `json:"msg"`
	Value        json.RawMessage `json:"value,omitempty"`
	Appointments json.RawMessage `json:"appointments,omitempty"`
	Doctors      json.RawMessage `json:"doctors,omitempty"`
	Feedback     json.RawMessage `json:"feedback,omitempty"`
}

// OK reports whether the API judged the request a success.
func (e *Envelope) OK() bool { return e.Msg == MsgSuccess }

// APIError is a response whose msg was not "Success".
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Msg)
}

// User is a signed-in or listed account as the API returns it.
type User struct {
	ID         string       `json:"id"`
	Email      string       `json:"email"`
	FirstName  string       `json:"firstName"`
	LastName   string       `json:"lastName"`
	Role       session.Role `json:"role"`
	Specialty  string       `json:"specialty,omitempty"`
	Experience int          `json:"experience,omitempty"`
	Fee        int          `json:"fee,omitempty"`
}

// Entity converts the user into the snapshot kept in the session.
func (u User) Entity() session.Entity {
	return session.Entity{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Specialty: u.Specialty,
	}
}

// LoginResult is the value of login and impersonation.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Appointment as listed by the API. Status is the raw backend string; use
// Canonical for every decision.
type Appointment struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	DoctorID    string    `json:"doctorId"`
	DoctorName  string    `json:"doctorName,omitempty"`
	Specialty   string    `json:"specialty,omitempty"`
	PatientName string    `json:"patientName,omitempty"`
	Date        string    `json:"date"`
	Slot        string    `json:"slot,omitempty"`
	Time        string    `json:"time,omitempty"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Canonical derives the canonical status from the raw one.
func (a Appointment) Canonical() status.Status { return status.Normalize(a.Status) }

// When returns the booked slot, which older records keep under "time".
func (a Appointment) When() string {
	if a.Slot != "" {
		return a.Slot
	}
	return a.Time
}

// BookRequest is the body of a new booking.
type BookRequest struct {
	DoctorID    string `json:"doctorId"`
	PatientID   string `json:"patientId,omitempty"`
	Date        string `json:"date"`
	Slot        string `json:"slot"`
	Description string `json:"description,omitempty"`
}

// Feedback as listed for admins.
type Feedback struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patientId"`
	PatientName  string    `json:"patientName,omitempty"`
	PatientEmail string    `json:"patientEmail,omitempty"`
	Subject      string    `json:"subject"`
	Message      string    `json:"message"`
	Rating       int       `json:"rating"`
	CreatedAt    time.Time `json:"createdAt"`
}

// News is an article from the news endpoints.
type News struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
}

// Article converts the news into the input of a ticker item.
func (n News) Article() ticker.Article {
	return ticker.Article{ID: n.ID, Title: n.Title, Content: n.Content, Category: n.Category, Published: n.Published}
}

// Client talks to the hospital API.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	stream  *http.Client
	log     *logrus.Entry
}

// NewClient creates a client for the API rooted at baseURL, for example
// http://localhost:5000/api. tokens may be nil for anonymous use.
func NewClient(baseURL string, tokens TokenSource, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
		// Streams stay open indefinitely.
		stream: &http.Client{},
		log:    logger.WithField("component", "portal-client"),
	}
}

// do sends one request and decodes the envelope. A response that decodes but
// does not carry msg "Success" is returned together with an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*Envelope, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug("api call")

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Msg: fallbackMsg(resp.StatusCode)}
	}
	if !env.OK() {
		msg := env.Msg
		if msg == "" {
			msg = fallbackMsg(resp.StatusCode)
		}
		return &env, &APIError{Status: resp.StatusCode, Msg: msg}
	}
	return &env, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// get calls path and decodes the first non-empty payload field into out.
func (c *Client) get(ctx context.Context, path string, out interface{}, fields ...func(*Envelope) json.RawMessage) error {
	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodePayload(env, out, fields...)
}

func decodePayload(env *Envelope, out interface{}, fields ...func(*Envelope) json.RawMessage) error {
	if len(fields) == 0 {
		fields = []func(*Envelope) json.RawMessage{value}
	}
	for _, field := range fields {
		raw := field(env)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return nil
	}
	return nil
}

func value(e *Envelope) json.RawMessage        { return e.Value }
func appointments(e *Envelope) json.RawMessage { return e.Appointments }
func doctors(e *Envelope) json.RawMessage      { return e.Doctors }
func feedback(e *Envelope) json.RawMessage     { return e.Feedback }

func fallbackMsg(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Something went wrong"
}

// Login signs in with the form of the given role.
func (c *Client) Login(ctx context.Context, role session.Role, email, password string) (LoginResult, error) {
	var result LoginResult
	env, err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": password,
		"role":     string(role),
	})
	if err != nil {
		return result, err
	}
	err = decodePayload(env, &result)
	return result, err
}

// Impersonate asks for a token acting as the given doctor or patient.
func (c *Client) Impersonate(ctx context.Context, role session.Role, id string) (LoginResult, error) {
	var result LoginResult
	env, err := c.do(ctx, http.MethodPost, "/admin/impersonate/"+url.PathEscape(string(role))+"/"+url.PathEscape(id), nil)
	if err != nil {
		return result, err
	}
	err = decodePayload(env, &result)
	return result, err
}

// AdminAppointments lists every appointment. The API sends the list under
// "appointments" and "value"; either is accepted.
func (c *Client) AdminAppointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	err := c.get(ctx, "/admin/appointments", &out, appointments, value)
	return out, err
}

// PatientAppointments lists the appointments of one patient.
func (c *Client) PatientAppointments(ctx context.Context, patientID string) ([]Appointment, error) {
	var out []Appointment
	err := c.get(ctx, "/app/p/"+url.PathEscape(patientID), &out)
	return out, err
}

// BookAppointment creates a booking.
func (c *Client) BookAppointment(ctx context.Context, req BookRequest) (Appointment, error) {
	var out Appointment
	env, err := c.do(ctx, http.MethodPost, "/app", req)
	if err != nil {
		return out, err
	}
	err = decodePayload(env, &out)
	return out, err
}

// UpdateStatusPath writes a status with PUT /app/status/{status}/{id}.
func (c *Client) UpdateStatusPath(ctx context.Context, id, newStatus string) error {
	_, err := c.do(ctx, http.MethodPut, "/app/status/"+url.PathEscape(newStatus)+"/"+url.PathEscape(id), nil)
	return err
}

// UpdateStatusAdmin writes a status with PUT /admin/appointment/{id}.
func (c *Client) UpdateStatusAdmin(ctx context.Context, id, newStatus string) error {
	_, err := c.do(ctx, http.MethodPut, "/admin/appointment/"+url.PathEscape(id), map[string]string{"status": newStatus})
	return err
}

// UpdateStatusGeneric writes a status with PUT /app/{id}.
func (c *Client) UpdateStatusGeneric(ctx context.Context, id, newStatus string) error {
	_, err := c.do(ctx, http.MethodPut, "/app/"+url.PathEscape(id), map[string]string{"status": newStatus})
	return err
}

// DeleteAppointment removes an appointment.
func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/app/"+url.PathEscape(id), nil)
	return err
}

// Doctors lists doctors.
func (c *Client) Doctors(ctx context.Context) ([]User, error) {
	var out []User
	err := c.get(ctx, "/doctors", &out, doctors, value)
	return out, err
}

// Patients lists patients (admin).
func (c *Client) Patients(ctx context.Context) ([]User, error) {
	var out []User
	err := c.get(ctx, "/admin/patients", &out)
	return out, err
}

// AdminFeedback lists patient feedback (admin).
func (c *Client) AdminFeedback(ctx context.Context) ([]Feedback, error) {
	var out []Feedback
	err := c.get(ctx, "/admin/feedback", &out, feedback, value)
	return out, err
}

// News lists published articles.
func (c *Client) News(ctx context.Context) ([]News, error) {
	var out []News
	err := c.get(ctx, "/news", &out)
	return out, err
}

// Article fetches one article, drafts included (admin).
func (c *Client) Article(ctx context.Context, id string) (News, error) {
	var out News
	err := c.get(ctx, "/admin/news/"+url.PathEscape(id), &out)
	return out, err
}

// RecentActivity fetches the activity snapshot, newest first.
func (c *Client) RecentActivity(ctx context.Context) ([]activity.Event, error) {
	var out []activity.Event
	err := c.get(ctx, "/admin/activity/recent", &out)
	return out, err
}

// OpenActivityStream opens the server-sent activity stream. The caller owns
// the returned body.
func (c *Client) OpenActivityStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/admin/activity/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(ctx, req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open activity stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var env Envelope
		msg := fallbackMsg(resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Msg != "" {
			msg = env.Msg
		}
		return nil, &APIError{Status: resp.StatusCode, Msg: msg}
	}
	return resp.Body, nil
}
