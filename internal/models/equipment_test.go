package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/backend/internal/apperr"
)

func TestEquipmentValidate(t *testing.T) {
	e := &Equipment{Kind: EquipmentCamera, SerialNumber: "CAM-1", ClientID: "client-1"}
	require.NoError(t, e.Validate())

	e.Kind = "toaster"
	assert.Error(t, e.Validate())

	assert.Error(t, (&Equipment{Kind: EquipmentRouter, ClientID: "c"}).Validate())
	assert.Error(t, (&Equipment{Kind: EquipmentRouter, SerialNumber: "R-1"}).Validate())
}

func TestReportConnectivity(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := &Equipment{Kind: EquipmentCamera, SerialNumber: "CAM-1", Status: EquipmentOffline}

	require.NoError(t, e.ReportConnectivity(true, "", now))
	assert.Equal(t, EquipmentOnline, e.Status)
	require.NotNil(t, e.LastSeen)

	later := now.Add(time.Minute)
	require.NoError(t, e.ReportConnectivity(false, "", later))
	assert.Equal(t, EquipmentOffline, e.Status)
	assert.Equal(t, now, *e.LastSeen, "last seen only moves on reachable reports")

	require.NoError(t, e.ReportConnectivity(true, "disk full", later))
	assert.Equal(t, EquipmentError, e.Status)
	assert.Equal(t, "disk full", e.LastError)
}

func TestEquipmentMaintenance(t *testing.T) {
	e := &Equipment{Status: EquipmentOnline, SerialNumber: "R-1"}
	e.SetMaintenance(true)
	assert.Equal(t, EquipmentMaintenance, e.Status)

	err := e.ReportConnectivity(true, "", time.Now())
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	e.SetMaintenance(false)
	assert.Equal(t, EquipmentOffline, e.Status)
}
