package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type apiError struct {
	Code    string
	Message string
	Status  int
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &apiError{Code: envelope.Error.Code, Message: envelope.Error.Message, Status: resp.StatusCode}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) Queue(doctorID string) ([]models.Patient, error) {
	var patients []models.Patient
	err := c.do(http.MethodGet, "/api/queue?doctor_id="+url.QueryEscape(doctorID), nil, &patients)
	return patients, err
}

func (c *apiClient) Join(doctorID, name, phone string) (models.Patient, error) {
	var patient models.Patient
	err := c.do(http.MethodPost, "/api/queue/join", map[string]string{
		"doctor_id": doctorID,
		"name":      name,
		"phone":     phone,
	}, &patient)
	return patient, err
}

func (c *apiClient) Reorder(doctorID string, patientIDs []string) error {
	return c.do(http.MethodPost, "/api/queue/reorder", map[string]interface{}{
		"doctor_id":   doctorID,
		"patient_ids": patientIDs,
	}, nil)
}

func (c *apiClient) Move(doctorID, patientID, direction string) error {
	return c.do(http.MethodPost, "/api/patients/"+patientID+"/actions/move-"+direction, map[string]string{
		"doctor_id": doctorID,
	}, nil)
}

func (c *apiClient) Skip(doctorID, patientID string, position int) error {
	return c.do(http.MethodPost, "/api/patients/"+patientID+"/actions/skip", map[string]interface{}{
		"doctor_id": doctorID,
		"position":  position,
	}, nil)
}

func (c *apiClient) Complete(doctorID, patientID, outcome string) error {
	return c.do(http.MethodPost, "/api/patients/"+patientID+"/actions/complete", map[string]string{
		"doctor_id": doctorID,
		"outcome":   outcome,
	}, nil)
}

func (c *apiClient) Reset() error {
	return c.do(http.MethodPost, "/api/reset", nil, nil)
}

func (c *apiClient) Analytics(doctorID, from, to string) ([]models.DailyAnalytics, error) {
	query := url.Values{}
	if doctorID != "" {
		query.Set("doctor_id", doctorID)
	}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	path := "/api/analytics"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var records []models.DailyAnalytics
	err := c.do(http.MethodGet, path, nil, &records)
	return records, err
}

func (c *apiClient) Recompute(doctorID, date string) (models.DailyAnalytics, error) {
	var record models.DailyAnalytics
	err := c.do(http.MethodPost, "/api/analytics/recompute", map[string]string{
		"doctor_id": doctorID,
		"date":      date,
	}, &record)
	return record, err
}

func (c *apiClient) ListDoctors() ([]models.Doctor, error) {
	var doctors []models.Doctor
	err := c.do(http.MethodGet, "/api/doctors", nil, &doctors)
	return doctors, err
}

func (c *apiClient) CreateDoctor(name, specialty string) (models.Doctor, error) {
	var doctor models.Doctor
	err := c.do(http.MethodPost, "/api/doctors", map[string]string{
		"name":      name,
		"specialty": specialty,
	}, &doctor)
	return doctor, err
}

func (c *apiClient) DeleteDoctor(doctorID string) error {
	return c.do(http.MethodDelete, "/api/doctors/"+doctorID, nil, nil)
}

func (c *apiClient) SetAccepting(doctorID string, accepting bool) error {
	return c.do(http.MethodPost, "/api/doctors/"+doctorID+"/actions/accepting", map[string]bool{
		"accepting": accepting,
	}, nil)
}
