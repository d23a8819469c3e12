package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirmsAndClients(t *testing.T) {
	s := newServer(t)

	status, body := s.call(t, s.org.Manager, "GET", "/api/firms", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["firms"], 2)

	status, body = s.call(t, s.org.Owner, "GET", "/api/firms", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["firms"], 3)

	status, body = s.call(t, s.org.Staff, "GET", "/api/clients", nil)
	require.Equal(t, http.StatusOK, status)
	clients := body["clients"].([]interface{})
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme Holdings", clients[0].(map[string]interface{})["name"])
}

func TestMembers(t *testing.T) {
	s := newServer(t)

	status, body := s.call(t, s.org.Staff, "GET", "/api/team", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["members"], 4)

	status, body = s.call(t, s.org.Other, "GET", "/api/team", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["members"], 1)
}

func TestAssignAndUnassignFirm(t *testing.T) {
	s := newServer(t)
	path := fmt.Sprintf("/api/team/%d/firms/%d", s.org.Staff.ID, s.org.FirmC.ID)

	status, body := s.call(t, s.org.Staff, "POST", path, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	// Manager cannot reach FirmC; the owner can.
	status, _ = s.call(t, s.org.Manager, "POST", path, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.call(t, s.org.Owner, "POST", path, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(s.org.FirmC.ID), body["firm_id"])
	assert.True(t, s.store.HasMapping(s.org.Staff.ID, s.org.FirmC.ID))

	status, body = s.call(t, s.org.Owner, "POST", path, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.call(t, s.org.Owner, "DELETE", path, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.False(t, s.store.HasMapping(s.org.Staff.ID, s.org.FirmC.ID))

	status, body = s.call(t, s.org.Owner, "DELETE", path, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestSetReportsTo(t *testing.T) {
	s := newServer(t)
	path := fmt.Sprintf("/api/team/%d/reports-to", s.org.Staff2.ID)

	status, body := s.call(t, s.org.Manager, "PUT", path, map[string]int{"manager_id": s.org.Owner.ID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.call(t, s.org.Owner, "PUT", path, map[string]int{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.call(t, s.org.Owner, "PUT", path, map[string]int{"manager_id": s.org.Owner.ID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(s.org.Owner.ID), body["reports_to"])

	moved, ok := s.store.User(s.org.Staff2.ID)
	require.True(t, ok)
	require.NotNil(t, moved.ReportsTo)
	assert.Equal(t, s.org.Owner.ID, *moved.ReportsTo)
}
