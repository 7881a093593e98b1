package engine

// Seeds is the seed pair of a derivation.
type Seeds struct {
	Server string `json:"server"` // ASCII; hashed as-is, never hex-decoded
	Client string `json:"client"`
}

// Verification is what any party can recompute once a server seed is disclosed.
type Verification struct {
	Mines          []int  `json:"mines"`
	CommitmentHash string `json:"seed_hash"`
}
