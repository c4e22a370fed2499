package sqldb

import (
	"context"
	"fmt"

	"clinic-console/internal/storage"

	"github.com/lucsky/cuid"
)

// Patient and call log operations

func (a *Adapter) FindPatientByPhone(ctx context.Context, phone string) (*storage.Patient, error) {
	var (
		p       storage.Patient
		created int64
	)
	err := a.queryRow(ctx,
		`SELECT id, clinic_id, name, phone, created_at FROM patients WHERE phone = ? ORDER BY created_at ASC LIMIT 1`,
		phone).Scan(&p.ID, &p.ClinicID, &p.Name, &p.Phone, &created)
	if err != nil {
		return nil, notFound(err)
	}
	p.CreatedAt = fromMillis(created)
	return &p, nil
}

func (a *Adapter) CreatePatient(ctx context.Context, patient *storage.Patient) error {
	if patient.ID == "" {
		patient.ID = cuid.New()
	}
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = a.now()
	}
	_, err := a.exec(ctx,
		`INSERT INTO patients (id, clinic_id, name, phone, created_at) VALUES (?, ?, ?, ?, ?)`,
		patient.ID, patient.ClinicID, patient.Name, patient.Phone, toMillis(patient.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (a *Adapter) SaveCallLog(ctx context.Context, log *storage.CallLog) error {
	if log.ID == "" {
		log.ID = cuid.New()
	}
	_, err := a.exec(ctx,
		`INSERT INTO call_logs (id, event_type, caller_number, called_number, patient_id, occurred_at, received_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.EventType, log.CallerNumber, log.CalledNumber, log.PatientID,
		toMillis(log.OccurredAt), toMillis(log.ReceivedAt))
	if err != nil {
		return fmt.Errorf("failed to save call log: %w", err)
	}
	return nil
}

func (a *Adapter) ListRecentCallLogs(ctx context.Context, limit int) ([]*storage.CallLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.query(ctx,
		`SELECT id, event_type, caller_number, called_number, patient_id, occurred_at, received_at FROM call_logs ORDER BY received_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*storage.CallLog
	for rows.Next() {
		var (
			l                  storage.CallLog
			occurred, received int64
		)
		if err := rows.Scan(&l.ID, &l.EventType, &l.CallerNumber, &l.CalledNumber, &l.PatientID, &occurred, &received); err != nil {
			return nil, err
		}
		l.OccurredAt = fromMillis(occurred)
		l.ReceivedAt = fromMillis(received)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
