package handler

import "encoding/json"

type transferRequest struct {
	NewOwnerID int64   `json:"new_owner_id"`
	Reason     *string `json:"reason,omitempty"`
}

type claimRequest struct {
	ClaimCode string `json:"claim_code"`
}

type submitClaimRequest struct {
	Reason           string          `json:"reason"`
	VerificationInfo json.RawMessage `json:"verification_info,omitempty"`
}

type reviewClaimRequest struct {
	Approved    *bool   `json:"approved"`
	ReviewNotes *string `json:"review_notes,omitempty"`
}

type claimCodeResponse struct {
	ClaimCode string `json:"claim_code"`
}
