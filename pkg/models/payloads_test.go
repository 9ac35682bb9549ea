package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheduleContext() *ScheduleContext {
	return &ScheduleContext{
		ScheduleID:  "sch-1",
		ReportID:    "rep-1",
		ReportDate:  "2026-08-23",
		CaregiverID: "cg-1",
		PatientID:   "pt-1",
		ShiftAllow:  true,
	}
}

func TestBuildAttendancePayload(t *testing.T) {
	payload, err := BuildAttendancePayload(testScheduleContext(), "5511999990000", ResponseConfirmado)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		FieldScheduleID:    "sch-1",
		FieldResponseValue: "confirmado",
		FieldCaregiverID:   "cg-1",
		FieldPhoneNumber:   "5511999990000",
	}, payload)
}

func TestBuildAttendancePayloadInvalidResponse(t *testing.T) {
	_, err := BuildAttendancePayload(testScheduleContext(), "5511999990000", "talvez")
	assert.Error(t, err)
}

func TestBuildAttendancePayloadNoContext(t *testing.T) {
	_, err := BuildAttendancePayload(nil, "5511999990000", ResponseConfirmado)
	assert.ErrorIs(t, err, ErrNoSessionContext)

	_, err = BuildAttendancePayload(&ScheduleContext{}, "5511999990000", ResponseConfirmado)
	assert.ErrorIs(t, err, ErrNoSessionContext)
}

func TestBuildClinicalPayloadFull(t *testing.T) {
	clinico := &ClinicalState{
		Vitais: map[string]string{
			VitalPA: "130x85", VitalFC: "80", VitalFR: "20",
			VitalSat: "96", VitalTemp: "37.0", VitalCondResp: "eupneico",
		},
		Nota: "dor no peito",
	}

	payload, err := BuildClinicalPayload(testScheduleContext(), clinico)
	require.NoError(t, err)

	assert.Equal(t, "130x85", payload[FieldBloodPressure])
	assert.Equal(t, "80", payload[FieldHeartRate])
	assert.Equal(t, "20", payload[FieldRespRate])
	assert.Equal(t, "96", payload[FieldSaturationO2])
	assert.Equal(t, "37.0", payload[FieldTemperature])
	assert.Equal(t, "eupneico", payload[FieldRespCondition])
	assert.Equal(t, "dor no peito", payload[FieldClinicalNote])
	assert.Equal(t, "rep-1", payload[FieldReportID])
	assert.Equal(t, "pt-1", payload[FieldPatientID])
}

func TestBuildClinicalPayloadNoteOnly(t *testing.T) {
	clinico := &ClinicalState{Vitais: map[string]string{}, Nota: "paciente dormiu bem"}

	payload, err := BuildClinicalPayload(testScheduleContext(), clinico)
	require.NoError(t, err)
	assert.Equal(t, "paciente dormiu bem", payload[FieldClinicalNote])
	assert.NotContains(t, payload, FieldHeartRate)
}

func TestBuildClinicalPayloadEmpty(t *testing.T) {
	_, err := BuildClinicalPayload(testScheduleContext(), &ClinicalState{Vitais: map[string]string{}})
	assert.Error(t, err)
}

func TestBuildClinicalPayloadUnknownVital(t *testing.T) {
	clinico := &ClinicalState{Vitais: map[string]string{"Glicemia": "90"}}
	_, err := BuildClinicalPayload(testScheduleContext(), clinico)
	assert.Error(t, err)
}

func TestBuildFinalizationPayload(t *testing.T) {
	resumo := map[string]string{
		FieldFoodHydration: "boa aceitacao",
		FieldSleep:         "dormiu a noite toda",
	}

	payload, err := BuildFinalizationPayload(testScheduleContext(), resumo)
	require.NoError(t, err)

	assert.Equal(t, "boa aceitacao", payload[FieldFoodHydration])
	assert.Equal(t, "dormiu a noite toda", payload[FieldSleep])
	// Absent narrative fields are sent empty, not omitted.
	assert.Contains(t, payload, FieldMood)
	assert.Equal(t, "", payload[FieldMood])
	assert.Equal(t, "sch-1", payload[FieldScheduleID])
	assert.NotContains(t, payload, FieldPatientID)
}

// The retired "action" field caused a production regression once; make sure
// no builder can ever emit it again.
func TestNoActionFieldInAnyPayload(t *testing.T) {
	ctx := testScheduleContext()

	attendance, err := BuildAttendancePayload(ctx, "5511999990000", ResponseCancelado)
	require.NoError(t, err)

	clinical, err := BuildClinicalPayload(ctx, &ClinicalState{
		Vitais: map[string]string{VitalPA: "120x80"},
	})
	require.NoError(t, err)

	finalization, err := BuildFinalizationPayload(ctx, nil)
	require.NoError(t, err)

	for _, payload := range []map[string]string{attendance, clinical, finalization} {
		assert.NotContains(t, payload, "action")
	}
}
