package main

import (
	"time"

	wis "wis-backend"
)

type sessionRequest struct {
	Secret           string         `json:"secret"`
	Plant            *wis.PlantSpec `json:"plant"`
	ThresholdProfile string         `json:"thresholdProfile"`
}

type computeRequest struct {
	Plant  *wis.PlantSpec         `json:"plant"`
	Sample *wis.MeasurementSample `json:"sample"`
}

type diagnoseRequest struct {
	Plant            *wis.PlantSpec         `json:"plant"`
	ThresholdProfile string                 `json:"thresholdProfile"`
	Sample           *wis.MeasurementSample `json:"sample"`
	SkipHistory      bool                   `json:"skipHistory"`
}

type computeResponse struct {
	Plant     wis.PlantSpec      `json:"plant"`
	Metrics   wis.DerivedMetrics `json:"metrics"`
	Undefined []string           `json:"undefinedMetrics"`
}

type diagnoseResponse struct {
	wis.Report
	Plant            wis.PlantSpec     `json:"plant"`
	ThresholdProfile string            `json:"thresholdProfile"`
	Record           wis.HistoryRecord `json:"record"`
	HistorySaved     bool              `json:"historySaved"`
	HistoryError     string            `json:"historyError,omitempty"`
	DiagnosedAt      time.Time         `json:"diagnosedAt"`
}
