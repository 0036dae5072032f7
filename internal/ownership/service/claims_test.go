package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"clubhub/internal/ownership/models"
	dErrors "clubhub/pkg/domain-errors"
	"clubhub/pkg/requestcontext"
)

// =============================================================================
// SubmitClaimRequest
// =============================================================================

func (s *ServiceSuite) TestSubmitClaimRequest() {
	s.Run("claim over an ownerless entity goes pending", func() {
		s.store.SeedEntity(models.KindTournament, 200, "Spring Open", nil)

		verification := json.RawMessage(`{"website":"https://springopen.example"}`)
		claim, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 200, userBob, "I organize this event", verification)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusPending, claim.Status)
		s.Equal(userBob, claim.ClaimerID)
		s.Equal("Spring Open", claim.EntityName)
		s.JSONEq(string(verification), string(claim.VerificationInfo))

		// Submission is a request, not a grant.
		entity, err := s.store.FindEntity(s.ctx(), models.KindTournament, 200)
		s.Require().NoError(err)
		s.Nil(entity.OwnerID)
	})

	s.Run("blank reason is rejected", func() {
		s.store.SeedEntity(models.KindTournament, 201, "Cup", nil)

		_, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 201, userBob, "   ", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("owned entity conflicts", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindTournament, 202, "Cup", &owner)

		_, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 202, userBob, "mine", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("second pending claim by the same user conflicts", func() {
		s.store.SeedEntity(models.KindTournament, 203, "Cup", nil)

		_, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 203, userBob, "mine", nil)
		s.Require().NoError(err)

		_, err = s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 203, userBob, "mine again", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("different users may have pending claims side by side", func() {
		s.store.SeedEntity(models.KindTournament, 204, "Cup", nil)

		_, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 204, userBob, "mine", nil)
		s.Require().NoError(err)
		_, err = s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 204, userCarol, "no, mine", nil)
		s.NoError(err)
	})
}

// =============================================================================
// ReviewClaimRequest
// =============================================================================

func (s *ServiceSuite) TestReviewClaimRequest() {
	submit := func(kind models.EntityKind, entityID, claimer int64) *models.OwnershipClaim {
		s.T().Helper()
		claim, err := s.service.SubmitClaimRequest(s.ctx(), kind, entityID, claimer, "claim reason", nil)
		s.Require().NoError(err)
		return claim
	}

	s.Run("requires system administrator", func() {
		s.store.SeedEntity(models.KindTournament, 210, "Cup", nil)
		claim := submit(models.KindTournament, 210, userBob)

		_, err := s.service.ReviewClaimRequest(s.ctx(), claim.ID, userAlice, true, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown claim returns not found", func() {
		_, err := s.service.ReviewClaimRequest(s.ctx(), uuid.New(), userRoot, true, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("approval grants ownership and appends a claim ledger row", func() {
		s.store.SeedEntity(models.KindClub, 211, "Club", nil)
		claim := submit(models.KindClub, 211, userBob)

		reviewedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		notes := "verified via website"
		reviewed, err := s.service.ReviewClaimRequest(
			requestcontext.WithTime(s.ctx(), reviewedAt), claim.ID, userRoot, true, &notes)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusApproved, reviewed.Status)
		s.Require().NotNil(reviewed.ReviewedBy)
		s.Equal(userRoot, *reviewed.ReviewedBy)
		s.Require().NotNil(reviewed.ReviewedAt)
		s.True(reviewed.ReviewedAt.Equal(reviewedAt))

		entity, err := s.store.FindEntity(s.ctx(), models.KindClub, 211)
		s.Require().NoError(err)
		s.Require().NotNil(entity.OwnerID)
		s.Equal(userBob, *entity.OwnerID)
		s.False(entity.IsClaimable)

		role, _, ok := s.store.RosterRow(models.KindClub, 211, userBob)
		s.Require().True(ok)
		s.Equal(models.RosterRoleOwner, role)

		ledger := s.ledger(models.KindClub, 211)
		s.Require().Len(ledger, 1)
		s.Equal(models.TransferTypeClaim, ledger[0].TransferType)
		s.Nil(ledger[0].FromUserID)
		s.Equal(userBob, ledger[0].ToUserID)
		s.Require().NotNil(ledger[0].PerformedBy)
		s.Equal(userRoot, *ledger[0].PerformedBy)
	})

	s.Run("rejection records the decision and leaves the entity unowned", func() {
		s.store.SeedEntity(models.KindTournament, 212, "Cup", nil)
		claim := submit(models.KindTournament, 212, userBob)

		notes := "no supporting evidence"
		reviewed, err := s.service.ReviewClaimRequest(s.ctx(), claim.ID, userRoot, false, &notes)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusRejected, reviewed.Status)

		entity, err := s.store.FindEntity(s.ctx(), models.KindTournament, 212)
		s.Require().NoError(err)
		s.Nil(entity.OwnerID)
		s.Empty(s.ledger(models.KindTournament, 212))
	})

	s.Run("a claim is reviewed exactly once", func() {
		s.store.SeedEntity(models.KindTournament, 213, "Cup", nil)
		claim := submit(models.KindTournament, 213, userBob)

		_, err := s.service.ReviewClaimRequest(s.ctx(), claim.ID, userRoot, false, nil)
		s.Require().NoError(err)

		_, err = s.service.ReviewClaimRequest(s.ctx(), claim.ID, userRoot, true, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("approval conflicts when an owner appeared since submission", func() {
		code := s.mintUnclaimed(models.KindVenue, 214, "Hall")
		claim := submit(models.KindVenue, 214, userBob)

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 214, code, userCarol)
		s.Require().NoError(err)

		_, err = s.service.ReviewClaimRequest(s.ctx(), claim.ID, userRoot, true, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		// The failed approval rolled back; the claim is still pending.
		stored, err := s.store.FindClaimForUpdate(s.ctx(), claim.ID)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusPending, stored.Status)
	})
}

// =============================================================================
// PendingClaims
// =============================================================================

func (s *ServiceSuite) TestPendingClaims() {
	s.Run("requires system administrator", func() {
		_, err := s.service.PendingClaims(s.ctx(), userAlice, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("queue is oldest first with names resolved", func() {
		s.store.SeedEntity(models.KindTournament, 220, "Cup", nil)
		s.store.SeedEntity(models.KindClub, 221, "Club", nil)

		first := requestcontext.WithTime(s.ctx(), time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
		_, err := s.service.SubmitClaimRequest(first, models.KindTournament, 220, userBob, "reason", nil)
		s.Require().NoError(err)

		second := requestcontext.WithTime(s.ctx(), time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
		_, err = s.service.SubmitClaimRequest(second, models.KindClub, 221, userCarol, "reason", nil)
		s.Require().NoError(err)

		claims, err := s.service.PendingClaims(s.ctx(), userRoot, nil)
		s.Require().NoError(err)
		s.Require().Len(claims, 2)
		s.Equal(userBob, claims[0].ClaimerID)
		s.Equal("Bob", claims[0].ClaimerName)
		s.Equal("Cup", claims[0].EntityName)
		s.Equal(userCarol, claims[1].ClaimerID)

		filtered, err := s.service.PendingClaims(s.ctx(), userRoot, kindPtr(models.KindClub))
		s.Require().NoError(err)
		s.Require().Len(filtered, 1)
		s.Equal(models.KindClub, filtered[0].EntityKind)
	})
}
