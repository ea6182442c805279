package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	wis "wis-backend"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type computeParams struct {
	Plant  *wis.PlantSpec         `json:"plant"`
	Sample *wis.MeasurementSample `json:"sample"`
}

type diagnoseParams struct {
	Plant            *wis.PlantSpec         `json:"plant"`
	Sample           *wis.MeasurementSample `json:"sample"`
	ThresholdProfile string                 `json:"thresholdProfile"`
	Record           bool                   `json:"record"`
}

type historyParams struct {
	Limit int `json:"limit"`
}

type rpcServer struct {
	history    wis.HistoryStore
	thresholds wis.ThresholdCatalog
	profile    string
	plant      wis.PlantSpec
	logger     *slog.Logger
	now        func() time.Time
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	port := getenv("PORT", "9000")
	profile := getenv("THRESHOLD_PROFILE", wis.ProfileStandard)

	catalog := wis.DefaultCatalog()
	if path := getenv("THRESHOLDS_PATH", ""); path != "" {
		loaded, err := wis.LoadThresholds(path)
		if err != nil {
			logger.Error("invalid thresholds file", slog.String("path", path), slog.String("error", err.Error()))
			os.Exit(1)
		}
		catalog = loaded
	}
	if _, err := catalog.Lookup(profile); err != nil {
		logger.Error("invalid threshold profile", slog.String("error", err.Error()))
		os.Exit(1)
	}

	history, err := wis.OpenHistoryStore(context.Background(), wis.StoreConfig{
		Type:     getenv("HISTORY_STORE", "csv"),
		Path:     getenv("HISTORY_PATH", wis.DefaultHistoryPath),
		Host:     getenv("HISTORY_SQL_HOST", "localhost"),
		Port:     getenvInt("HISTORY_SQL_PORT", 0),
		User:     getenv("HISTORY_SQL_USER", ""),
		Password: getenv("HISTORY_SQL_PASSWORD", ""),
		Database: getenv("HISTORY_SQL_DATABASE", ""),
		SSLMode:  getenv("HISTORY_SQL_SSLMODE", ""),
		Table:    getenv("HISTORY_SQL_TABLE", wis.DefaultHistoryTable),
	})
	if err != nil {
		logger.Error("failed to open history", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer history.Close()

	srv := &rpcServer{
		history:    history,
		thresholds: catalog,
		profile:    profile,
		plant:      wis.DefaultPlantSpec(),
		logger:     logger,
		now:        time.Now,
	}
	mux := http.NewServeMux()
	mux.Handle("/rpc", srv)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("rpc server listening", slog.String("port", port), slog.String("thresholdProfile", profile))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func (s *rpcServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRPCError(w, nil, http.StatusMethodNotAllowed, -32600, "method not allowed")
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, http.StatusBadRequest, -32700, "invalid json")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, http.StatusBadRequest, -32600, "invalid request")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	switch req.Method {
	case "process.compute_metrics":
		var params computeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, http.StatusBadRequest, -32602, "invalid params: "+err.Error())
			return
		}
		plant, sample, err := s.prepare(params.Plant, params.Sample)
		if err != nil {
			writeRPCError(w, req.ID, http.StatusBadRequest, -32602, err.Error())
			return
		}
		writeRPCResult(w, req.ID, map[string]any{
			"metrics":          wis.ComputeMetrics(plant, sample),
			"undefinedMetrics": wis.UndefinedMetrics(plant, sample),
		})
	case "process.diagnose":
		var params diagnoseParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, http.StatusBadRequest, -32602, "invalid params: "+err.Error())
			return
		}
		plant, sample, err := s.prepare(params.Plant, params.Sample)
		if err != nil {
			writeRPCError(w, req.ID, http.StatusBadRequest, -32602, err.Error())
			return
		}
		profile := s.profile
		if strings.TrimSpace(params.ThresholdProfile) != "" {
			profile = params.ThresholdProfile
		}
		thresholds, err := s.thresholds.Lookup(profile)
		if err != nil {
			writeRPCError(w, req.ID, http.StatusBadRequest, -32602, err.Error())
			return
		}
		report := wis.Run(plant, sample, thresholds)
		if params.Record {
			rec := wis.NewHistoryRecord(s.now(), sample, report.Metrics)
			if err := s.history.Append(ctx, rec); err != nil {
				s.logger.Error("failed to save history", slog.String("error", err.Error()))
				writeRPCError(w, req.ID, http.StatusInternalServerError, -32603, "failed to save history")
				return
			}
		}
		writeRPCResult(w, req.ID, report)
	case "history.list":
		var params historyParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil || params.Limit < 0 {
				writeRPCError(w, req.ID, http.StatusBadRequest, -32602, "invalid params")
				return
			}
		}
		records, err := s.history.List(ctx)
		if err != nil {
			s.logger.Error("failed to list history", slog.String("error", err.Error()))
			writeRPCError(w, req.ID, http.StatusInternalServerError, -32603, "failed to list history")
			return
		}
		total := len(records)
		if params.Limit > 0 && params.Limit < total {
			records = records[:params.Limit]
		}
		writeRPCResult(w, req.ID, map[string]any{"records": records, "total": total})
	case "thresholds.list":
		writeRPCResult(w, req.ID, map[string]any{"activeProfile": s.profile, "profiles": s.thresholds})
	default:
		writeRPCError(w, req.ID, http.StatusNotFound, -32601, "method not found")
	}
}

func (s *rpcServer) prepare(plant *wis.PlantSpec, sample *wis.MeasurementSample) (wis.PlantSpec, wis.MeasurementSample, error) {
	if sample == nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, errors.New("sample is required")
	}
	spec := s.plant
	if plant != nil {
		spec = *plant
	}
	if err := wis.ValidatePlant(spec); err != nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, err
	}
	if err := wis.ValidateSample(*sample); err != nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, err
	}
	if err := wis.ValidateMetrics(wis.ComputeMetrics(spec, *sample)); err != nil {
		return wis.PlantSpec{}, wis.MeasurementSample{}, err
	}
	return spec, *sample, nil
}

func writeRPCResult(w http.ResponseWriter, id any, result any) {
	writeRPC(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id any, status int, code int, message string) {
	writeRPC(w, status, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func writeRPC(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(val); err == nil {
		return parsed
	}
	return fallback
}
