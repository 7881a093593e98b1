package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MJE43/pf-mines/internal/play"
	"github.com/MJE43/pf-mines/internal/scan"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("Invalid JSON format: %v", err)
	}
	return nil
}

func validateReveal(req *RevealRequest) error {
	if req.GameID == "" || req.Position == nil {
		return errors.New("Missing game_id or position")
	}
	return nil
}

func validateCashout(req *CashoutRequest) error {
	if req.GameID == "" {
		return errors.New("Missing game_id")
	}
	return nil
}

// validateVerify checks required fields in the order they are documented and
// converts the request for the play service.
func validateVerify(req *VerifyRequest) (play.VerifyRequest, error) {
	switch {
	case req.ServerSeed == nil:
		return play.VerifyRequest{}, errors.New("Missing server_seed")
	case req.ClientSeed == nil:
		return play.VerifyRequest{}, errors.New("Missing client_seed")
	case req.GridSize == nil:
		return play.VerifyRequest{}, errors.New("Missing grid_size")
	case req.MineCount == nil:
		return play.VerifyRequest{}, errors.New("Missing mine_count")
	}
	return play.VerifyRequest{
		ServerSeed: *req.ServerSeed,
		ClientSeed: *req.ClientSeed,
		Nonce:      req.Nonce,
		GridSize:   *req.GridSize,
		MineCount:  *req.MineCount,
	}, nil
}

func validateSeedHash(req *SeedHashRequest) error {
	if req.ServerSeed == "" {
		return errors.New("Missing server_seed")
	}
	return nil
}

const maxTimeoutMs = 300_000

// validateScan covers what the scanner cannot check itself. Range, limit,
// board and metric checks live in scan.ScanRequest.Validate.
func validateScan(req *ScanRequest) error {
	switch {
	case req.Seeds.Server == "":
		return errors.New("Missing seeds.server")
	case req.Seeds.Client == "":
		return errors.New("Missing seeds.client")
	case req.Metric == "":
		return errors.New("Missing metric")
	case req.TargetOp == "":
		return errors.New("Missing target_op")
	}
	if req.TargetOp == scan.OpBetween || req.TargetOp == scan.OpOutside {
		if req.TargetVal > req.TargetVal2 {
			return fmt.Errorf("target_val must be <= target_val2 for '%s'", req.TargetOp)
		}
	}
	if req.TimeoutMs < 0 || req.TimeoutMs > maxTimeoutMs {
		return fmt.Errorf("timeout_ms must be 0-%d", maxTimeoutMs)
	}
	if req.Tolerance < 0 {
		return errors.New("tolerance must be >= 0")
	}
	return nil
}

// convertToScanRequest converts API ScanRequest to internal scan.ScanRequest
func convertToScanRequest(req *ScanRequest) scan.ScanRequest {
	return scan.ScanRequest{
		Seeds:      req.Seeds,
		NonceStart: req.NonceStart,
		NonceEnd:   req.NonceEnd,
		GridSize:   req.GridSize,
		MineCount:  req.MineCount,
		Metric:     req.Metric,
		Picks:      req.Picks,
		TargetOp:   req.TargetOp,
		TargetVal:  req.TargetVal,
		TargetVal2: req.TargetVal2,
		Tolerance:  req.Tolerance,
		Limit:      req.Limit,
		TimeoutMs:  req.TimeoutMs,
	}
}
