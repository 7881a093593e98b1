package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/pf-mines/internal/ledger"
)

func (s *Server) handleLedgerInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Info())
}

// handleLedgerEntry returns the recorded commitment for a game. Once the seed
// is revealed the response says whether it hashes to the commitment.
func (s *Server) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.Get(r.Context(), chi.URLParam(r, "game_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := LedgerEntryResponse{
		GameID:      rec.GameID,
		SeedHash:    rec.SeedHash,
		CommittedAt: rec.CommittedAt.UTC().Format(time.RFC3339),
		Revealed:    rec.Revealed,
		ServerSeed:  rec.ServerSeed,
	}
	if rec.Revealed {
		valid := ledger.VerifyRecord(rec, rec.ServerSeed)
		resp.Valid = &valid
		resp.RevealedAt = rec.RevealedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
