package server

import (
	"atelier/internal/domain"
)

type OfferRequest struct {
	ReviewerID string `json:"reviewer_id" example:"rev-42"`
	Bounty     int64  `json:"bounty" minimum:"0" example:"250"`
}

type CreateAtelierRequest struct {
	GameID      string         `json:"game_id" example:"sc2"`
	Title       string         `json:"title" example:"ladder game 412"`
	Description *string        `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	IsPrivate   bool           `json:"is_private,omitempty"`
	MediaType   string         `json:"media_type" example:"video/mp4"`
	OriginalB64 string         `json:"original_b64"`
	Offers      []OfferRequest `json:"offers"`
}

type SubmitReviewRequest struct {
	MediaType string `json:"media_type" example:"video/mp4"`
	ReviewB64 string `json:"review_b64"`
}

type ScoreRequest struct {
	Score float64 `json:"score" example:"4.5"`
}

type AmountRequest struct {
	Amount int64 `json:"amount" minimum:"1" example:"500"`
}

type FailureRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CreateKeyRequest struct {
	Name string `json:"name,omitempty"`
	Key  string `json:"key"`
}

type AtelierResponse struct {
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
	Bounty      *int64   `json:"bounty,omitempty"`
	MaxBounty   int64    `json:"max_bounty"`
	ReviewKey   *string  `json:"review_key,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func atelierResponse(a domain.Atelier) AtelierResponse {
	return AtelierResponse{
		ID:          a.ID,
		UploaderID:  a.UploaderID,
		GameID:      a.GameID,
		Title:       a.Title,
		Description: a.Description,
		Tags:        a.Tags,
		IsPrivate:   a.IsPrivate,
		Status:      a.Status,
		StatusLabel: a.StatusLabel,
		ReviewerID:  a.ReviewerID,
		Bounty:      a.Bounty,
		MaxBounty:   a.MaxBounty,
		ReviewKey:   a.ReviewKey,
		Score:       a.Score,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func mapAteliers(in []domain.Atelier) []AtelierResponse {
	out := make([]AtelierResponse, 0, len(in))
	for _, a := range in {
		out = append(out, atelierResponse(a))
	}
	return out
}

type paginatedAteliers struct {
	Items      []AtelierResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type CandidateResponse struct {
	ReviewerID string `json:"reviewer_id"`
	Bounty     int64  `json:"bounty"`
	OfferedAt  string `json:"offered_at"`
}

func mapCandidates(in []domain.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(in))
	for _, c := range in {
		out = append(out, CandidateResponse{ReviewerID: c.ReviewerID, Bounty: c.Bounty, OfferedAt: c.OfferedAt})
	}
	return out
}

type AccountResponse struct {
	UserID     string `json:"user_id"`
	Free       int64  `json:"free"`
	Frozen     int64  `json:"frozen"`
	Redeemable int64  `json:"redeemable"`
	UpdatedAt  string `json:"updated_at"`
}

func accountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		UserID:     a.UserID,
		Free:       a.Free,
		Frozen:     a.Frozen,
		Redeemable: a.Redeemable,
		UpdatedAt:  a.UpdatedAt,
	}
}

type HistoryResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	AtelierID  string `json:"atelier_id,omitempty"`
	ActorID    string `json:"actor_id"`
	FromStatus *int   `json:"from_status,omitempty"`
	ToStatus   *int   `json:"to_status,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

func mapHistory(in []domain.HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(in))
	for _, e := range in {
		out = append(out, HistoryResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			AtelierID:  e.AtelierID,
			ActorID:    e.ActorID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Payload:    e.Payload,
		})
	}
	return out
}

type KeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

func keyResponse(k domain.APIKey) KeyResponse {
	return KeyResponse{ID: k.ID, UserID: k.UserID, Name: k.Name, CreatedAt: k.CreatedAt}
}
