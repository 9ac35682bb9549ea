package models

import (
	"errors"
	"fmt"
)

// Payload field names at the external-operation boundary. These sets are
// closed: a prepared payload may never carry a field outside the allowlist
// of its flow (the retired "action" field in particular must never reappear).
const (
	FieldPhoneNumber   = "phoneNumber"
	FieldScheduleID    = "scheduleID"
	FieldResponseValue = "responseValue"
	FieldCaregiverID   = "caregiverID"
	FieldReportID      = "reportID"
	FieldReportDate    = "reportDate"
	FieldPatientID     = "patientID"
	FieldClinicalNote  = "clinicalNote"

	FieldHeartRate     = "heartRate"
	FieldBloodPressure = "bloodPressure"
	FieldRespRate      = "respRate"
	FieldSaturationO2  = "saturationO2"
	FieldTemperature   = "temperature"
	FieldRespCondition = "respCondition"

	FieldFoodHydration  = "foodHydration"
	FieldElimination    = "elimination"
	FieldSleep          = "sleep"
	FieldMood           = "mood"
	FieldMedications    = "medications"
	FieldActivities     = "activities"
	FieldAdditionalInfo = "additionalInfo"
	FieldAdminInfo      = "administrativeInfo"
)

// Attendance response values.
const (
	ResponseConfirmado = "confirmado"
	ResponseCancelado  = "cancelado"
)

// NoChangesNote is the canonical clinical note used when a post-first
// measurement omits one.
const NoChangesNote = "sem alteracoes"

// VitalPayloadField maps accumulator vital names to payload field names.
var VitalPayloadField = map[string]string{
	VitalPA:       FieldBloodPressure,
	VitalFC:       FieldHeartRate,
	VitalFR:       FieldRespRate,
	VitalSat:      FieldSaturationO2,
	VitalTemp:     FieldTemperature,
	VitalCondResp: FieldRespCondition,
}

var attendanceFields = fieldSet(FieldScheduleID, FieldResponseValue, FieldCaregiverID, FieldPhoneNumber)

var clinicalFields = fieldSet(
	FieldReportID, FieldReportDate, FieldScheduleID, FieldCaregiverID, FieldPatientID,
	FieldHeartRate, FieldBloodPressure, FieldRespRate, FieldSaturationO2, FieldTemperature,
	FieldRespCondition, FieldClinicalNote,
)

var finalizationFields = fieldSet(
	FieldReportID, FieldReportDate, FieldScheduleID, FieldCaregiverID,
	FieldFoodHydration, FieldElimination, FieldSleep, FieldMood,
	FieldMedications, FieldActivities, FieldAdditionalInfo, FieldAdminInfo,
)

// ErrNoSessionContext signals a payload build attempted before the schedule
// lookup populated the session context.
var ErrNoSessionContext = errors.New("session has no schedule context")

func fieldSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func checkFields(flow Flow, payload map[string]string, allowed map[string]bool) error {
	for k := range payload {
		if !allowed[k] {
			return fmt.Errorf("payload for %s: field %q not allowed", flow, k)
		}
	}
	return nil
}

// BuildAttendancePayload builds the attendance-confirmation payload.
func BuildAttendancePayload(ctx *ScheduleContext, phoneNumber, responseValue string) (map[string]string, error) {
	if ctx == nil || ctx.ScheduleID == "" {
		return nil, ErrNoSessionContext
	}
	if responseValue != ResponseConfirmado && responseValue != ResponseCancelado {
		return nil, fmt.Errorf("attendance payload: invalid responseValue %q", responseValue)
	}
	payload := map[string]string{
		FieldScheduleID:    ctx.ScheduleID,
		FieldResponseValue: responseValue,
		FieldCaregiverID:   ctx.CaregiverID,
		FieldPhoneNumber:   phoneNumber,
	}
	if err := checkFields(FlowSchedule, payload, attendanceFields); err != nil {
		return nil, err
	}
	return payload, nil
}

// BuildClinicalPayload builds the clinical-save payload from the merged
// accumulator. At least one vital or a note must be present.
func BuildClinicalPayload(ctx *ScheduleContext, clinico *ClinicalState) (map[string]string, error) {
	if ctx == nil || ctx.ScheduleID == "" {
		return nil, ErrNoSessionContext
	}
	payload := map[string]string{
		FieldReportID:    ctx.ReportID,
		FieldReportDate:  ctx.ReportDate,
		FieldScheduleID:  ctx.ScheduleID,
		FieldCaregiverID: ctx.CaregiverID,
		FieldPatientID:   ctx.PatientID,
	}
	hasData := false
	for name, value := range clinico.Vitais {
		field, ok := VitalPayloadField[name]
		if !ok {
			return nil, fmt.Errorf("clinical payload: unknown vital %q", name)
		}
		if value == "" {
			continue
		}
		payload[field] = value
		hasData = true
	}
	if clinico.Nota != "" {
		payload[FieldClinicalNote] = clinico.Nota
		hasData = true
	}
	if !hasData {
		return nil, errors.New("clinical payload: no vitals or note to save")
	}
	if err := checkFields(FlowClinical, payload, clinicalFields); err != nil {
		return nil, err
	}
	return payload, nil
}

// BuildFinalizationPayload builds the shift-summary payload. Narrative fields
// absent from the extraction are sent empty; identifiers are mandatory.
func BuildFinalizationPayload(ctx *ScheduleContext, resumo map[string]string) (map[string]string, error) {
	if ctx == nil || ctx.ScheduleID == "" {
		return nil, ErrNoSessionContext
	}
	payload := map[string]string{
		FieldReportID:    ctx.ReportID,
		FieldReportDate:  ctx.ReportDate,
		FieldScheduleID:  ctx.ScheduleID,
		FieldCaregiverID: ctx.CaregiverID,
	}
	for _, field := range []string{
		FieldFoodHydration, FieldElimination, FieldSleep, FieldMood,
		FieldMedications, FieldActivities, FieldAdditionalInfo, FieldAdminInfo,
	} {
		payload[field] = resumo[field]
	}
	if err := checkFields(FlowFinalization, payload, finalizationFields); err != nil {
		return nil, err
	}
	return payload, nil
}
