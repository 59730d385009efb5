package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vessel-cbm-monitor/internal/export"
	"vessel-cbm-monitor/internal/ingest"
	"vessel-cbm-monitor/internal/metrics"
	"vessel-cbm-monitor/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"readings": s.store.Len(),
	})
}

type vocabulary struct {
	Vessels           []string `json:"vessels"`
	EquipmentCodes    []string `json:"equipmentCodes"`
	Components        []string `json:"components"`
	MeasurementPoints []string `json:"measurementPoints"`
	SubComponentCodes []string `json:"subComponentCodes"`
	Parameters        []string `json:"parameters"`
}

func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	vessel := r.URL.Query().Get("vessel")
	code := r.URL.Query().Get("equipmentCode")

	respondJSON(w, http.StatusOK, vocabulary{
		Vessels:           s.store.Vessels(),
		EquipmentCodes:    s.store.EquipmentCodes(vessel),
		Components:        s.store.Components(code),
		MeasurementPoints: s.store.MeasurementPoints(code),
		SubComponentCodes: s.store.SubComponentCodes(code),
		Parameters:        s.store.ParameterNames(),
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	target, err := models.ParseDimension(mux.Vars(r)["dimension"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	constraints := make(map[models.Dimension]string)
	for _, d := range models.Dimensions {
		if v := r.URL.Query().Get(string(d)); v != "" {
			constraints[d] = v
		}
	}

	var options []string
	if changed := r.URL.Query().Get("changed"); changed != "" {
		d, err := models.ParseDimension(changed)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		options = s.store.Index().OptionsForChange(target, constraints, d)
	} else {
		options = s.store.Index().OptionsFor(target, constraints)
	}
	respondJSON(w, http.StatusOK, options)
}

func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Parameters().All())
}

func equipmentFilter(r *http.Request) models.EquipmentFilter {
	q := r.URL.Query()
	return models.EquipmentFilter{
		Vessel:        q.Get("vessel"),
		EquipmentCode: q.Get("equipmentCode"),
		Component:     q.Get("component"),
		Parameter:     q.Get("parameter"),
	}
}

func (s *Server) handleEquipmentSeries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	f := equipmentFilter(r)
	if f.Vessel == "" || f.EquipmentCode == "" {
		respondError(w, http.StatusBadRequest, "vessel and equipmentCode are required")
		return
	}

	series := s.engine.EquipmentSeries(f)
	respondWithMeta(w, series, &meta{Total: len(series), QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleRecentReadings(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	respondJSON(w, http.StatusOK, s.engine.RecentReadings(equipmentFilter(r), limit))
}

func (s *Server) handlePairedSeries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	f := equipmentFilter(r)
	if f.Vessel == "" || f.EquipmentCode == "" {
		respondError(w, http.StatusBadRequest, "vessel and equipmentCode are required")
		return
	}

	points := s.engine.PairedSeries(f.Vessel, f.EquipmentCode, f.Component)
	respondWithMeta(w, points, &meta{Total: len(points), QueryMs: time.Since(start).Milliseconds()})
}

type trendResponse struct {
	models.FleetTrend
	Display map[string]string `json:"display"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	parameter := r.URL.Query().Get("parameter")
	if parameter == "" {
		respondError(w, http.StatusBadRequest, "parameter is required")
		return
	}
	rangeDays, ok := intParam(r, "range", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid range")
		return
	}

	trend := s.engine.FleetTrend(parameter, r.URL.Query().Get("vessel"), rangeDays)
	resp := trendResponse{
		FleetTrend: trend,
		Display: map[string]string{
			"average": models.FormatStat(trend.Stats.Average, trend.Unit),
			"minimum": models.FormatStat(trend.Stats.Minimum, trend.Unit),
			"maximum": models.FormatStat(trend.Stats.Maximum, trend.Unit),
			"stddev":  models.FormatStat(trend.Stats.StdDev, trend.Unit),
		},
	}
	respondWithMeta(w, resp, &meta{Total: trend.Stats.Count, QueryMs: time.Since(start).Milliseconds()})
}

func rawFilter(r *http.Request) (models.RawFilter, bool) {
	rangeDays, ok := intParam(r, "range", 0)
	if !ok {
		return models.RawFilter{}, false
	}
	q := r.URL.Query()
	return models.RawFilter{
		Search:    q.Get("search"),
		Vessel:    q.Get("vessel"),
		Parameter: q.Get("parameter"),
		RangeDays: rangeDays,
	}, true
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	f, ok := rawFilter(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid range")
		return
	}
	page, ok := intParam(r, "page", 1)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid page")
		return
	}
	pageSize, ok := intParam(r, "pageSize", s.cfg.PageSize)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pageSize")
		return
	}

	result := s.engine.RawListing(f, page, pageSize)
	respondWithMeta(w, result.Items, &meta{
		Total:      result.TotalCount,
		Page:       result.Page,
		TotalPages: result.TotalPages,
		PageSize:   result.PageSize,
		QueryMs:    time.Since(start).Milliseconds(),
	})
}

func (s *Server) missingParams(r *http.Request) (string, int, string, bool) {
	threshold, ok := intParam(r, "threshold", s.cfg.StalenessDays)
	if !ok {
		return "", 0, "", false
	}
	sortBy := r.URL.Query().Get("sort")
	if sortBy == "" {
		sortBy = models.SortByDays
	}
	return r.URL.Query().Get("vessel"), threshold, sortBy, true
}

func (s *Server) handleMissing(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vessel, threshold, sortBy, ok := s.missingParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid threshold")
		return
	}

	items := s.engine.MissingEquipment(vessel, threshold, sortBy)
	respondWithMeta(w, items, &meta{Total: len(items), QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Quality())
}

type ingestRowsRequest struct {
	Files []struct {
		Name   string                   `json:"name"`
		Vessel string                   `json:"vessel"`
		Rows   []map[string]interface{} `json:"rows"`
	} `json:"files"`
}

func (s *Server) handleIngestRows(w http.ResponseWriter, r *http.Request) {
	var req ingestRowsRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	batches := make([]ingest.RowBatch, 0, len(req.Files))
	for _, f := range req.Files {
		rows := make([]models.Row, 0, len(f.Rows))
		for _, m := range f.Rows {
			rows = append(rows, models.RowFromMap(m))
		}
		batches = append(batches, ingest.RowBatch{Name: f.Name, Vessel: f.Vessel, Rows: rows})
	}

	result, err := s.pipeline.IngestBatches(r.Context(), batches)
	switch {
	case errors.Is(err, ingest.ErrNoFiles):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ingest.ErrBatchInProgress):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.persistence == nil {
		respondError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}
	if err := s.persistence.Save(r.Context(), s.store); err != nil {
		s.logger.Error("save failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"readings": s.store.Len()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"readings":   s.store.Len(),
		"vessels":    len(s.store.Vessels()),
		"parameters": len(s.store.ParameterNames()),
		"quality":    s.store.Quality(),
		"cache_size": s.store.Index().CacheSize(),
	}
	respondJSON(w, http.StatusOK, stats)
}

var contentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pdf":  "application/pdf",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if _, ok := contentTypes[format]; !ok || (format == "pdf" && kind != export.KindMissing) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q for %s", format, kind))
		return
	}

	body, err := s.buildExport(r, kind, format)
	if err != nil {
		metrics.IncExport(string(kind), metrics.ResultError)
		if errors.Is(err, export.ErrNothingToExport) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.IncExport(string(kind), metrics.ResultSuccess)

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(kind, format, s.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) buildExport(r *http.Request, kind export.Kind, format string) ([]byte, error) {
	if kind == export.KindMissing {
		vessel, threshold, sortBy, ok := s.missingParams(r)
		if !ok {
			return nil, errors.New("invalid threshold")
		}
		items := s.engine.MissingEquipment(vessel, threshold, sortBy)
		switch format {
		case "pdf":
			return export.BuildMissingReportPDF(items, threshold, s.now())
		case "xlsx":
			return export.BuildXLSX(string(kind), export.MissingRecords(items), export.MissingColumns)
		}
		text, err := export.ToDelimitedText(export.MissingRecords(items), export.MissingColumns)
		return []byte(text), err
	}

	var readings []models.Reading
	switch kind {
	case export.KindEquipment:
		f := equipmentFilter(r)
		if f.Vessel == "" || f.EquipmentCode == "" {
			return nil, errors.New("vessel and equipmentCode are required")
		}
		readings = s.engine.EquipmentSeries(f)
	case export.KindTrend:
		rangeDays, ok := intParam(r, "range", 0)
		if !ok {
			return nil, errors.New("invalid range")
		}
		readings = s.engine.TrendReadings(r.URL.Query().Get("parameter"), r.URL.Query().Get("vessel"), rangeDays)
	case export.KindRaw:
		f, ok := rawFilter(r)
		if !ok {
			return nil, errors.New("invalid range")
		}
		readings = s.engine.RawReadings(f)
		sort.SliceStable(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })
	}

	records := export.ReadingRecords(readings)
	if format == "xlsx" {
		return export.BuildXLSX(string(kind), records, export.ReadingColumns)
	}
	text, err := export.ToDelimitedText(records, export.ReadingColumns)
	return []byte(text), err
}
