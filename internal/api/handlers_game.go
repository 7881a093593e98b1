package api

import (
	"net/http"

	"github.com/MJE43/pf-mines/internal/engine"
	"github.com/MJE43/pf-mines/internal/play"
)

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req NewGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.invalid(w, r, err)
		return
	}

	created, err := s.play.NewGame(r.Context(), play.NewGameRequest{
		GridSize:   req.GridSize,
		MineCount:  req.MineCount,
		ClientSeed: req.ClientSeed,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("game created",
		"game_id", created.GameID,
		"grid_size", created.GridSize,
		"mine_count", created.MineCount,
		"seed_hash", created.SeedHash[:16],
	)
	s.writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if err := decodeBody(r, &req); err != nil {
		s.invalid(w, r, err)
		return
	}
	if err := validateReveal(&req); err != nil {
		s.invalid(w, r, err)
		return
	}

	res, err := s.play.Reveal(r.Context(), req.GameID, *req.Position)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Terminal {
		s.logger.Info("game over", "game_id", req.GameID, "outcome", res.Outcome)
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCashout(w http.ResponseWriter, r *http.Request) {
	var req CashoutRequest
	if err := decodeBody(r, &req); err != nil {
		s.invalid(w, r, err)
		return
	}
	if err := validateCashout(&req); err != nil {
		s.invalid(w, r, err)
		return
	}

	res, err := s.play.Cashout(r.Context(), req.GameID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("game cashed out", "game_id", req.GameID, "multiplier", res.Multiplier)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("game_id")
	if id == "" {
		s.errorHandler.HandleValidationError(w, r, "Missing game_id")
		return
	}

	snap, err := s.play.State(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleVerify re-derives a board from disclosed seeds. It does not touch any
// game in the registry.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.invalid(w, r, err)
		return
	}
	vreq, err := validateVerify(&req)
	if err != nil {
		s.invalid(w, r, err)
		return
	}

	v, err := s.play.Verify(vreq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Debug("verify",
		"server_hash", hashSeed(vreq.ServerSeed),
		"client_hash", hashSeed(vreq.ClientSeed),
		"nonce", vreq.Nonce,
	)
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSeedHash(w http.ResponseWriter, r *http.Request) {
	var req SeedHashRequest
	if err := decodeBody(r, &req); err != nil {
		s.invalid(w, r, err)
		return
	}
	if err := validateSeedHash(&req); err != nil {
		s.invalid(w, r, err)
		return
	}

	hash := engine.CommitmentHash(req.ServerSeed)
	s.logger.Debug("seed hashed", "hash", hash[:16])
	s.writeJSON(w, http.StatusOK, SeedHashResponse{
		Hash:          hash,
		EngineVersion: EngineVersion,
	})
}
