package service

import (
	"errors"
	"sync"
	"time"

	"clubhub/internal/audit"
	"clubhub/internal/ownership/models"
	dErrors "clubhub/pkg/domain-errors"
	"clubhub/pkg/requestcontext"
)

// =============================================================================
// TransferOwnership
// =============================================================================

func (s *ServiceSuite) TestTransferOwnership() {
	s.Run("owner transfers to another user", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 100, "Hall", &owner)

		reason := "retiring"
		transfer, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 100, userAlice, userBob, &reason)
		s.Require().NoError(err)
		s.Equal(models.TransferTypeTransfer, transfer.TransferType)
		s.Require().NotNil(transfer.FromUserID)
		s.Equal(userAlice, *transfer.FromUserID)
		s.Equal(userBob, transfer.ToUserID)
		s.Require().NotNil(transfer.Reason)
		s.Equal("retiring", *transfer.Reason)

		entity, err := s.store.FindEntity(s.ctx(), models.KindVenue, 100)
		s.Require().NoError(err)
		s.Require().NotNil(entity.OwnerID)
		s.Equal(userBob, *entity.OwnerID)
		s.False(entity.IsClaimable)
		s.Nil(entity.ClaimCode)

		s.Require().Len(s.ledger(models.KindVenue, 100), 1)
	})

	s.Run("non-owner is rejected", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 101, "Hall", &owner)

		_, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 101, userBob, userCarol, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Empty(s.ledger(models.KindVenue, 101))
	})

	s.Run("roster admin may not transfer", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindClub, 102, "Club", &owner)
		s.Require().NoError(s.store.UpsertRosterRole(s.ctx(), models.KindClub, 102, userBob, models.RosterRoleAdmin, models.RosterStatusActive))

		_, err := s.service.TransferOwnership(s.ctx(), models.KindClub, 102, userBob, userCarol, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("system administrator transfers on behalf of the owner", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 103, "Hall", &owner)

		transfer, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 103, userRoot, userBob, nil)
		s.Require().NoError(err)
		s.Require().NotNil(transfer.PerformedBy)
		s.Equal(userRoot, *transfer.PerformedBy)
		s.Equal(userBob, transfer.ToUserID)
	})

	s.Run("self transfer is rejected", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 104, "Hall", &owner)

		_, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 104, userAlice, userAlice, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.ledger(models.KindVenue, 104))
	})

	s.Run("unknown target user is rejected before any mutation", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 105, "Hall", &owner)

		_, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 105, userAlice, 4242, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Empty(s.ledger(models.KindVenue, 105))
	})

	s.Run("rostered kind demotes the previous owner and promotes the new one", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindClub, 106, "Club", &owner)
		s.Require().NoError(s.store.UpsertRosterRole(s.ctx(), models.KindClub, 106, userAlice, models.RosterRoleOwner, models.RosterStatusActive))

		_, err := s.service.TransferOwnership(s.ctx(), models.KindClub, 106, userAlice, userBob, nil)
		s.Require().NoError(err)

		role, status, ok := s.store.RosterRow(models.KindClub, 106, userAlice)
		s.Require().True(ok)
		s.Equal(models.RosterRoleAdmin, role)
		s.Equal(models.RosterStatusActive, status)

		role, status, ok = s.store.RosterRow(models.KindClub, 106, userBob)
		s.Require().True(ok)
		s.Equal(models.RosterRoleOwner, role)
		s.Equal(models.RosterStatusActive, status)
	})

	s.Run("system administrator assigns an owner to an unowned entity", func() {
		s.store.SeedEntity(models.KindVenue, 107, "Orphan Hall", nil)

		transfer, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 107, userRoot, userBob, nil)
		s.Require().NoError(err)
		s.Nil(transfer.FromUserID)
		s.Equal(models.TransferTypeTransfer, transfer.TransferType)
	})

	s.Run("successful transfer emits an audit event", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 108, "Hall", &owner)
		before := len(s.audits.Events())

		_, err := s.service.TransferOwnership(s.ctx(), models.KindVenue, 108, userAlice, userBob, nil)
		s.Require().NoError(err)

		events := s.audits.Events()
		s.Require().Len(events, before+1)
		s.Equal(audit.ActionOwnershipTransferred, events[len(events)-1].Action)
	})
}

// =============================================================================
// CreateUnclaimedEntity
// =============================================================================

func (s *ServiceSuite) TestCreateUnclaimedEntity() {
	s.Run("requires system administrator", func() {
		s.store.SeedEntity(models.KindVenue, 110, "Hall", nil)

		_, err := s.service.CreateUnclaimedEntity(s.ctx(), models.KindVenue, 110, userAlice)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown entity returns not found", func() {
		_, err := s.service.CreateUnclaimedEntity(s.ctx(), models.KindVenue, 404, userRoot)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("mint clears the owner, sets a code, and appends an admin_assign row", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 111, "Hall", &owner)

		code, err := s.service.CreateUnclaimedEntity(s.ctx(), models.KindVenue, 111, userRoot)
		s.Require().NoError(err)
		s.NotEmpty(code)

		entity, err := s.store.FindEntity(s.ctx(), models.KindVenue, 111)
		s.Require().NoError(err)
		s.Nil(entity.OwnerID)
		s.True(entity.IsClaimable)
		s.Require().NotNil(entity.ClaimCode)
		s.Equal(code, *entity.ClaimCode)
		s.Nil(entity.ClaimedAt)

		ledger := s.ledger(models.KindVenue, 111)
		s.Require().Len(ledger, 1)
		s.Equal(models.TransferTypeAdminAssign, ledger[0].TransferType)
		s.Nil(ledger[0].FromUserID)
		s.Require().NotNil(ledger[0].Reason)
		s.Equal("Admin created unclaimed entity", *ledger[0].Reason)
	})

	s.Run("codes are unique across mints", func() {
		s.store.SeedEntity(models.KindVenue, 112, "Hall A", nil)
		s.store.SeedEntity(models.KindVenue, 113, "Hall B", nil)

		codeA, err := s.service.CreateUnclaimedEntity(s.ctx(), models.KindVenue, 112, userRoot)
		s.Require().NoError(err)
		codeB, err := s.service.CreateUnclaimedEntity(s.ctx(), models.KindVenue, 113, userRoot)
		s.Require().NoError(err)
		s.NotEqual(codeA, codeB)
	})
}

// =============================================================================
// ClaimWithCode
// =============================================================================

func (s *ServiceSuite) TestClaimWithCode() {
	s.Run("valid code grants ownership", func() {
		code := s.mintUnclaimed(models.KindVenue, 120, "Hall")

		claimedAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx(), claimedAt)
		transfer, err := s.service.ClaimWithCode(ctx, models.KindVenue, 120, code, userBob)
		s.Require().NoError(err)
		s.Equal(models.TransferTypeClaim, transfer.TransferType)
		s.Nil(transfer.FromUserID)
		s.Equal(userBob, transfer.ToUserID)

		entity, err := s.store.FindEntity(s.ctx(), models.KindVenue, 120)
		s.Require().NoError(err)
		s.Require().NotNil(entity.OwnerID)
		s.Equal(userBob, *entity.OwnerID)
		s.False(entity.IsClaimable)
		s.Nil(entity.ClaimCode)
		s.Require().NotNil(entity.ClaimedAt)
		s.True(entity.ClaimedAt.Equal(claimedAt))
	})

	s.Run("wrong code is rejected without mutation", func() {
		s.mintUnclaimed(models.KindVenue, 121, "Hall")

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 121, "not-the-code", userBob)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		entity, err := s.store.FindEntity(s.ctx(), models.KindVenue, 121)
		s.Require().NoError(err)
		s.Nil(entity.OwnerID)
		s.True(entity.IsClaimable)
	})

	s.Run("empty code is rejected", func() {
		s.mintUnclaimed(models.KindVenue, 122, "Hall")

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 122, "  ", userBob)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("claim of an owned entity conflicts even with the right code", func() {
		code := s.mintUnclaimed(models.KindVenue, 123, "Hall")
		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 123, code, userBob)
		s.Require().NoError(err)

		_, err = s.service.ClaimWithCode(s.ctx(), models.KindVenue, 123, code, userCarol)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-claimable entity is rejected", func() {
		s.store.SeedEntity(models.KindVenue, 124, "Hall", nil)

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 124, "whatever", userBob)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rostered kind adds an owner roster row", func() {
		code := s.mintUnclaimed(models.KindClub, 125, "Club")

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindClub, 125, code, userBob)
		s.Require().NoError(err)

		role, status, ok := s.store.RosterRow(models.KindClub, 125, userBob)
		s.Require().True(ok)
		s.Equal(models.RosterRoleOwner, role)
		s.Equal(models.RosterStatusActive, status)
	})

	s.Run("concurrent claims produce exactly one owner and one conflict", func() {
		code := s.mintUnclaimed(models.KindVenue, 126, "Hall")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, claimer := range []int64{userBob, userCarol} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.service.ClaimWithCode(s.ctx(), models.KindVenue, 126, code, claimer)
			}()
		}
		wg.Wait()

		var successes, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}
		s.Equal(1, successes)
		s.Equal(1, conflicts)
		s.Require().Len(s.ledger(models.KindVenue, 126), 2) // mint + one claim
	})

	s.Run("throttled attempts fail before code comparison", func() {
		code := s.mintUnclaimed(models.KindVenue, 127, "Hall")
		s.service.attempts = denyAllLimiter{}
		defer func() { s.service.attempts = nil }()

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 127, code, userBob)
		s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
	})

	s.Run("limiter infrastructure failure fails open", func() {
		code := s.mintUnclaimed(models.KindVenue, 128, "Hall")
		s.service.attempts = failingLimiter{err: errors.New("redis down")}
		defer func() { s.service.attempts = nil }()

		_, err := s.service.ClaimWithCode(s.ctx(), models.KindVenue, 128, code, userBob)
		s.NoError(err)
	})
}

// =============================================================================
// RegenerateClaimCode
// =============================================================================

func (s *ServiceSuite) TestRegenerateClaimCode() {
	s.Run("entity admin regenerates and the old code stops working", func() {
		oldCode := s.mintUnclaimed(models.KindVenue, 130, "Hall")

		newCode, err := s.service.RegenerateClaimCode(s.ctx(), models.KindVenue, 130, userRoot)
		s.Require().NoError(err)
		s.NotEqual(oldCode, newCode)

		_, err = s.service.ClaimWithCode(s.ctx(), models.KindVenue, 130, oldCode, userBob)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.ClaimWithCode(s.ctx(), models.KindVenue, 130, newCode, userBob)
		s.NoError(err)
	})

	s.Run("owner of the entity may regenerate", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 131, "Hall", &owner)

		code, err := s.service.RegenerateClaimCode(s.ctx(), models.KindVenue, 131, userAlice)
		s.Require().NoError(err)
		s.NotEmpty(code)

		entity, err := s.store.FindEntity(s.ctx(), models.KindVenue, 131)
		s.Require().NoError(err)
		s.Require().NotNil(entity.OwnerID) // ownership untouched
		s.True(entity.IsClaimable)
	})

	s.Run("non-admin is rejected", func() {
		owner := userAlice
		s.store.SeedEntity(models.KindVenue, 132, "Hall", &owner)

		_, err := s.service.RegenerateClaimCode(s.ctx(), models.KindVenue, 132, userBob)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("regeneration appends no ledger row", func() {
		s.mintUnclaimed(models.KindVenue, 133, "Hall")
		before := len(s.ledger(models.KindVenue, 133))

		_, err := s.service.RegenerateClaimCode(s.ctx(), models.KindVenue, 133, userRoot)
		s.Require().NoError(err)
		s.Len(s.ledger(models.KindVenue, 133), before)
	})
}
