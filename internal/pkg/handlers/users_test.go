package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
)

type recordedCall struct {
	method string
	path   string
	query  string
	body   map[string]any
}

// crudServer fakes the marketplace CRUD API: it records every write call
// and answers lookups from a fixed route table.
type crudServer struct {
	*httptest.Server

	calls   []recordedCall
	lookups map[string]string // "GET path" -> JSON body
	status  int
}

func newCRUDServer() *crudServer {
	s := &crudServer{lookups: map[string]string{}, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			json.Unmarshal(raw, &call.body)
		}
		s.calls = append(s.calls, call)

		if r.Method == http.MethodGet {
			reply, ok := s.lookups[r.URL.Path]
			if !ok {
				reply = "[]"
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, reply)
			return
		}
		w.WriteHeader(s.status)
	}))
	return s
}

func (s *crudServer) writes() []recordedCall {
	out := []recordedCall{}
	for _, call := range s.calls {
		if call.method != http.MethodGet {
			out = append(out, call)
		}
	}
	return out
}

func eventBody(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"payload": payload})
	assert.NoError(t, err)
	return raw
}

func TestUsersHandlerCreatesClient(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_created", eventBody(t, map[string]any{
		"userId":      7,
		"role":        "client",
		"firstName":   "Ada",
		"lastName":    "Lovelace",
		"dni":         "12345678",
		"phoneNumber": "555-0100",
		"addresses": []map[string]any{
			{"city": "Springfield", "street": "Main"},
			{"city": "Shelbyville", "street": "Oak"},
			{"city": "Ogdenville", "street": "Elm"},
		},
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		call := writes[0]
		assert.Equal(t, http.MethodPost, call.method)
		assert.Equal(t, "/users", call.path)
		assert.Equal(t, float64(7), call.body["external_id"])
		assert.Equal(t, "Ada", call.body["first_name"])
		assert.Equal(t, "12345678", call.body["dni"])
		// Clients keep at most two addresses.
		assert.Len(t, call.body["addresses"], 2)
	}
}

func TestUsersHandlerCreatesProvider(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_created", eventBody(t, map[string]any{
		"userId":   8,
		"role":     "provider",
		"email":    "pro@example.com",
		"password": "secret",
		"addresses": []map[string]any{
			{"city": "Springfield"},
			{"city": "Shelbyville"},
		},
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		call := writes[0]
		assert.Equal(t, "/providers", call.path)
		assert.Equal(t, "pro@example.com", call.body["email"])
		// Providers keep a single address.
		assert.Len(t, call.body["addresses"], 1)
	}
}

func TestUsersHandlerDefaultsRoleToClient(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_created", eventBody(t, map[string]any{
		"userId":    9,
		"firstName": "NoRole",
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		assert.Equal(t, "/users", writes[0].path)
	}
}

func TestUsersHandlerUpdateResolvesCollection(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()
	// Not a client, found among providers.
	server.lookups["/providers"] = `[{"id":42}]`

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_updated", eventBody(t, map[string]any{
		"userId":    8,
		"firstName": "Renamed",
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		call := writes[0]
		assert.Equal(t, http.MethodPatch, call.method)
		assert.Equal(t, "/providers/42", call.path)
		assert.Equal(t, "Renamed", call.body["first_name"])
		// Unset fields never appear in the patch.
		assert.NotContains(t, call.body, "email")
	}
}

func TestUsersHandlerUpdateSkipsUnknownUser(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_updated", eventBody(t, map[string]any{
		"userId": 404,
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Empty(t, server.writes())
}

func TestUsersHandlerDeactivates(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()
	server.lookups["/users"] = `[{"id":11}]`

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_deactivated", eventBody(t, map[string]any{
		"userId": 7,
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	writes := server.writes()
	if assert.Len(t, writes, 1) {
		assert.Equal(t, http.MethodDelete, writes[0].method)
		assert.Equal(t, "/users/11", writes[0].path)
	}
}

func TestUsersHandlerRejectedRegistrationIsNoOp(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_rejected", eventBody(t, map[string]any{
		"userId": 7,
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Empty(t, server.calls)
}

func TestUsersHandlerReportsAPIRejection(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()
	server.status = http.StatusConflict

	h := NewUsersHandler(apiclient.New(server.URL, "token"))
	result, err := h.Handle(context.Background(), "user_created", eventBody(t, map[string]any{
		"userId": 7,
		"role":   "client",
	}))

	assert.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
}

func TestUsersHandlerSkipsInvalidPayloads(t *testing.T) {
	server := newCRUDServer()
	defer server.Close()

	h := NewUsersHandler(apiclient.New(server.URL, "token"))

	tests := []struct {
		name string
		body []byte
	}{
		{name: "missing userId", body: eventBody(t, map[string]any{"role": "client"})},
		{name: "unknown role", body: eventBody(t, map[string]any{"userId": 7, "role": "astronaut"})},
		{name: "unhandled event name", body: eventBody(t, map[string]any{"userId": 7})},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			eventName := "user_created"
			if tc.name == "unhandled event name" {
				eventName = "user_logged_in"
			}
			result, err := h.Handle(context.Background(), eventName, tc.body)
			assert.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, result.Outcome)
		})
	}
	assert.Empty(t, server.writes())
}
