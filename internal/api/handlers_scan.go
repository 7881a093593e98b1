package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/scan"
	"github.com/MJE43/pf-mines/internal/store"
)

var errArchiveDisabled = EngineError{Type: ErrTypeServiceUnavailable, Message: "Archive not configured"}

// handleScan runs a nonce scan and, when asked, stores it in the archive.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeBody(r, &req); err != nil {
		s.invalid(w, r, err)
		return
	}
	if err := validateScan(&req); err != nil {
		s.invalid(w, r, err)
		return
	}
	if req.Save && s.archive == nil {
		s.unavailable(w, r)
		return
	}

	s.logger.Info("scan started",
		"server_hash", hashSeed(req.Seeds.Server),
		"client_hash", hashSeed(req.Seeds.Client),
		"nonce_start", req.NonceStart,
		"nonce_end", req.NonceEnd,
		"metric", req.Metric,
		"target_op", req.TargetOp,
		"limit", req.Limit,
	)

	result, err := s.scanner.Scan(r.Context(), convertToScanRequest(&req))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := ScanResponse{
		Hits:          result.Hits,
		Summary:       result.Summary,
		EngineVersion: result.EngineVersion,
		Echo: ScanEcho{
			ServerSeedHash: engine.CommitmentHash(req.Seeds.Server),
			ClientSeed:     req.Seeds.Client,
			NonceStart:     req.NonceStart,
			NonceEnd:       req.NonceEnd,
			GridSize:       req.GridSize,
			MineCount:      req.MineCount,
			Metric:         req.Metric,
			TargetOp:       req.TargetOp,
			TargetVal:      req.TargetVal,
			TargetVal2:     req.TargetVal2,
			Limit:          req.Limit,
		},
	}

	if req.Save {
		runID, err := s.saveRun(&req, result)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.RunID = runID
	}

	s.logger.Info("scan completed",
		"hits", result.Summary.HitsFound,
		"evaluated", result.Summary.TotalEvaluated,
		"limit_reached", result.Summary.LimitReached,
		"timed_out", result.Summary.TimedOut,
		"run_id", resp.RunID,
	)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveRun(req *ScanRequest, result *scan.ScanResult) (string, error) {
	run := &store.Run{
		ID:             uuid.NewString(),
		ServerSeedHash: engine.CommitmentHash(req.Seeds.Server),
		ClientSeed:     req.Seeds.Client,
		NonceStart:     req.NonceStart,
		NonceEnd:       req.NonceEnd,
		GridSize:       req.GridSize,
		MineCount:      req.MineCount,
		Metric:         string(req.Metric),
		TargetOp:       string(req.TargetOp),
		TargetVal:      req.TargetVal,
		TargetVal2:     req.TargetVal2,
		Tolerance:      req.Tolerance,
		HitLimit:       req.Limit,
		TimedOut:       result.Summary.TimedOut,
		HitCount:       result.Summary.HitsFound,
		TotalEvaluated: result.Summary.TotalEvaluated,
		SummaryCount:   result.Summary.HitsFound,
		EngineVersion:  result.EngineVersion,
	}
	if n := result.Summary.HitsFound; n > 0 {
		lo, hi := result.Summary.MinMetric, result.Summary.MaxMetric
		sum := result.Summary.MeanMetric * float64(n)
		run.SummaryMin, run.SummaryMax, run.SummarySum = &lo, &hi, &sum
	}
	if err := s.archive.SaveRun(run); err != nil {
		return "", err
	}

	hits := make([]store.Hit, len(result.Hits))
	for i, h := range result.Hits {
		hits[i] = store.Hit{Nonce: h.Nonce, Metric: h.Metric, Mines: h.Mines}
	}
	if err := s.archive.SaveHits(run.ID, hits); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.unavailable(w, r)
		return
	}
	page, perPage := pagination(r)
	runs, err := s.archive.ListRuns(store.RunsQuery{
		ClientSeed: r.URL.Query().Get("client_seed"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunHits(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.unavailable(w, r)
		return
	}
	runID := chi.URLParam(r, "run_id")
	if _, err := s.archive.GetRun(runID); err != nil {
		s.fail(w, r, err)
		return
	}
	page, perPage := pagination(r)
	hits, err := s.archive.GetRunHits(runID, page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.unavailable(w, r)
		return
	}
	page, perPage := pagination(r)
	list, err := s.archive.ListGames(store.GamesQuery{
		Outcome: r.URL.Query().Get("outcome"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHistoryGame(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.unavailable(w, r)
		return
	}
	game, err := s.archive.GetGame(chi.URLParam(r, "game_id"))
	if errors.Is(err, store.ErrNotFound) {
		s.errorHandler.write(w, r, http.StatusNotFound, NewError(ErrTypeGameNotFound, "Game not found").Build())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, game)
}

func (s *Server) unavailable(w http.ResponseWriter, r *http.Request) {
	s.errorHandler.write(w, r, http.StatusServiceUnavailable, errArchiveDisabled)
}

// pagination reads page and per_page, leaving zero for the store defaults.
func pagination(r *http.Request) (page, perPage int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	perPage, _ = strconv.Atoi(q.Get("per_page"))
	if perPage > 500 {
		perPage = 500
	}
	return page, perPage
}
