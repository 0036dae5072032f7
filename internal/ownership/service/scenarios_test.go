package service

import (
	"clubhub/internal/ownership/models"
	dErrors "clubhub/pkg/domain-errors"
)

// =============================================================================
// End-to-end scenarios
// =============================================================================
// Full lifecycles exercised through the public service surface only.

func (s *ServiceSuite) TestScenarioMintAndClaimVenue() {
	// Admin mints an unclaimed venue.
	s.store.SeedEntity(models.KindVenue, 300, "Riverside Hall", nil)
	code, err := s.service.CreateUnclaimedEntity(s.ctx(), models.KindVenue, 300, userRoot)
	s.Require().NoError(err)

	// The code is visible in the administrative pool view.
	unclaimed, err := s.service.UnclaimedEntities(s.ctx(), userRoot, kindPtr(models.KindVenue))
	s.Require().NoError(err)
	s.Require().Len(unclaimed, 1)
	s.Require().NotNil(unclaimed[0].ClaimCode)
	s.Equal(code, *unclaimed[0].ClaimCode)

	// Bob claims with the code.
	_, err = s.service.ClaimWithCode(s.ctx(), models.KindVenue, 300, code, userBob)
	s.Require().NoError(err)

	// The public view shows Bob as owner and never the code.
	entity, err := s.service.GetOwnership(s.ctx(), models.KindVenue, 300)
	s.Require().NoError(err)
	s.Require().NotNil(entity.OwnerID)
	s.Equal(userBob, *entity.OwnerID)
	s.Equal("Bob", entity.OwnerName)
	s.False(entity.IsClaimable)
	s.Nil(entity.ClaimCode)

	// A second claim attempt conflicts.
	_, err = s.service.ClaimWithCode(s.ctx(), models.KindVenue, 300, code, userCarol)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// The ledger holds the full story: mint first, then the claim.
	history, err := s.service.TransferHistory(s.ctx(), models.KindVenue, 300)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.TransferTypeClaim, history[0].TransferType)
	s.Equal(models.TransferTypeAdminAssign, history[1].TransferType)
}

func (s *ServiceSuite) TestScenarioClubTransferWithRoster() {
	owner := userAlice
	s.store.SeedEntity(models.KindClub, 301, "Harbor Chess Club", &owner)
	s.Require().NoError(s.store.UpsertRosterRole(s.ctx(), models.KindClub, 301, userAlice, models.RosterRoleOwner, models.RosterStatusActive))
	s.Require().NoError(s.store.UpsertRosterRole(s.ctx(), models.KindClub, 301, userBob, models.RosterRoleMember, models.RosterStatusActive))

	reason := "moving away"
	transfer, err := s.service.TransferOwnership(s.ctx(), models.KindClub, 301, userAlice, userBob, &reason)
	s.Require().NoError(err)
	s.Equal("Bob", transfer.ToUserName)

	// Alice keeps admin standing, Bob is the roster owner now.
	aliceCheck, err := s.service.CheckOwnership(s.ctx(), models.KindClub, 301, userAlice)
	s.Require().NoError(err)
	s.False(aliceCheck.IsOwner)
	s.True(aliceCheck.IsAdmin)

	bobCheck, err := s.service.CheckOwnership(s.ctx(), models.KindClub, 301, userBob)
	s.Require().NoError(err)
	s.True(bobCheck.IsOwner)
	s.True(bobCheck.IsAdmin)

	// Alice can no longer transfer; Bob can.
	_, err = s.service.TransferOwnership(s.ctx(), models.KindClub, 301, userAlice, userCarol, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.TransferOwnership(s.ctx(), models.KindClub, 301, userBob, userCarol, nil)
	s.Require().NoError(err)

	history, err := s.service.TransferHistory(s.ctx(), models.KindClub, 301)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("Carol", history[0].ToUserName)
	s.Equal("Bob", history[1].ToUserName)
}

func (s *ServiceSuite) TestScenarioTournamentClaimRejectedThenApproved() {
	s.store.SeedEntity(models.KindTournament, 302, "Autumn Cup", nil)

	// First claim is rejected.
	claim, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 302, userBob, "I run this tournament", nil)
	s.Require().NoError(err)

	notes := "need proof of organization"
	_, err = s.service.ReviewClaimRequest(s.ctx(), claim.ID, userRoot, false, &notes)
	s.Require().NoError(err)

	// Rejection frees the claimer to submit again.
	resubmitted, err := s.service.SubmitClaimRequest(s.ctx(), models.KindTournament, 302, userBob, "proof attached this time", nil)
	s.Require().NoError(err)
	s.NotEqual(claim.ID, resubmitted.ID)

	// The queue holds only the new claim.
	pending, err := s.service.PendingClaims(s.ctx(), userRoot, kindPtr(models.KindTournament))
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(resubmitted.ID, pending[0].ID)

	// Approval grants ownership.
	_, err = s.service.ReviewClaimRequest(s.ctx(), resubmitted.ID, userRoot, true, nil)
	s.Require().NoError(err)

	entity, err := s.service.GetOwnership(s.ctx(), models.KindTournament, 302)
	s.Require().NoError(err)
	s.Require().NotNil(entity.OwnerID)
	s.Equal(userBob, *entity.OwnerID)

	history, err := s.service.TransferHistory(s.ctx(), models.KindTournament, 302)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.TransferTypeClaim, history[0].TransferType)
	s.Nil(history[0].FromUserID)
}
