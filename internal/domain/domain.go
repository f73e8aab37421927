package domain

// Atelier is a single video-review work item: an uploaded match recording,
// its candidate auction and, once accepted, the assigned review.
type Atelier struct {
	ID          string   `json:"id"`
	UploaderID  string   `json:"uploader_id"`
	GameID      string   `json:"game_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsPrivate   bool     `json:"is_private"`
	Status      int      `json:"status"`
	StatusLabel string   `json:"status_label"`
	ReviewerID  *string  `json:"reviewer_id,omitempty"`
	// Bounty is the accepted candidate's bid; nil until a candidate accepts.
	Bounty *int64 `json:"bounty,omitempty"`
	// MaxBounty is the amount frozen from the uploader at creation.
	MaxBounty   int64    `json:"max_bounty"`
	OriginalKey string   `json:"original_key"`
	ReviewKey   *string  `json:"review_key,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// Candidate is one reviewer bid attached to an atelier while it is in auction.
type Candidate struct {
	AtelierID  string `json:"atelier_id"`
	ReviewerID string `json:"reviewer_id"`
	Bounty     int64  `json:"bounty"`
	OfferedAt  string `json:"offered_at" format:"date-time"`
}

// Account holds a user's coin balances in minor currency units.
type Account struct {
	UserID     string `json:"user_id"`
	Free       int64  `json:"free"`
	Frozen     int64  `json:"frozen"`
	Redeemable int64  `json:"redeemable"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

// HistoryEntry is one row of the append-only lifecycle log.
type HistoryEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	AtelierID  string `json:"atelier_id,omitempty"`
	ActorID    string `json:"actor_id"`
	FromStatus *int   `json:"from_status,omitempty"`
	ToStatus   *int   `json:"to_status,omitempty"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates a server caller as a user.
type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
