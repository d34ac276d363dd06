package services

import (
	"errors"
	"log"
	"sort"

	"habit-gamification-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeService evaluates the static badge catalog against per-user metrics
// and unlocks badges exactly once. Progress is monotonic: a streak reset
// never rolls back progress a user already banked.
type BadgeService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Clock  clockwork.Clock
}

func NewBadgeService(db *gorm.DB, ledger *LedgerService, clock clockwork.Clock) *BadgeService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BadgeService{DB: db, Ledger: ledger, Clock: clock}
}

// Evaluate raises progress for every badge listening to the given metric and
// unlocks any that crossed their threshold. Runs inside the caller's event
// transaction. Returns the badges that flipped to earned in this call.
//
// The unlock is a conditional update on state = locked, so two concurrent
// evaluations cannot both award the same badge: exactly one sees a row
// flip, and only that one grants the reward XP.
func (s *BadgeService) Evaluate(tx *gorm.DB, externalUserID string, metric models.BadgeMetric, value int64) ([]models.Badge, error) {
	var earned []models.Badge

	for _, badge := range models.BadgesForMetric(metric) {
		if err := s.ensureProgressRow(tx, externalUserID, badge.Code); err != nil {
			return nil, err
		}

		// progress never decreases, even if the metric dropped
		err := tx.Model(&models.BadgeProgress{}).
			Where("external_user_id = ? AND badge_code = ?", externalUserID, badge.Code).
			Update("progress", gorm.Expr("CASE WHEN progress >= ? THEN progress ELSE ? END", value, value)).Error
		if err != nil {
			return nil, wrapStore("raise badge progress", err)
		}

		now := s.Clock.Now().UTC()
		res := tx.Model(&models.BadgeProgress{}).
			Where("external_user_id = ? AND badge_code = ? AND state = ? AND progress >= ?",
				externalUserID, badge.Code, models.BadgeStateLocked, badge.Threshold).
			Updates(map[string]interface{}{
				"state":     models.BadgeStateEarned,
				"earned_at": now,
			})
		if res.Error != nil {
			return nil, wrapStore("unlock badge", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		if _, err := s.Ledger.Grant(tx, externalUserID, badge.XPReward, models.SourceBadgeUnlock, badge.Code, ""); err != nil {
			return nil, err
		}
		earned = append(earned, badge)
		log.Printf("🎖️  Badge earned: user=%s badge=%s (+%d XP)", externalUserID, badge.Code, badge.XPReward)
	}

	return earned, nil
}

func (s *BadgeService) ensureProgressRow(tx *gorm.DB, externalUserID, code string) error {
	row := models.BadgeProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		BadgeCode:      code,
		Progress:       0,
		State:          models.BadgeStateLocked,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "badge_code"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return wrapStore("ensure badge progress row", err)
	}
	return nil
}

// UserBadge merges a catalog entry with one user's progress toward it.
type UserBadge struct {
	models.Badge
	Color    string                    `json:"color"`
	Progress int64                     `json:"progress"`
	State    models.BadgeProgressState `json:"state"`
	EarnedAt *string                   `json:"earned_at,omitempty"`
}

// GetBadges returns the full catalog with the user's progress merged in,
// sorted by category then tier.
func (s *BadgeService) GetBadges(externalUserID string) ([]UserBadge, error) {
	var rows []models.BadgeProgress
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&rows).Error; err != nil {
		return nil, wrapStore("load badge progress", err)
	}
	byCode := make(map[string]models.BadgeProgress, len(rows))
	for _, r := range rows {
		byCode[r.BadgeCode] = r
	}

	out := make([]UserBadge, 0, len(models.BadgeCatalog))
	for _, b := range models.BadgeCatalog {
		ub := UserBadge{Badge: b, Color: b.Tier.Color(), State: models.BadgeStateLocked}
		if r, ok := byCode[b.Code]; ok {
			ub.Progress = r.Progress
			ub.State = r.State
			if r.EarnedAt != nil {
				formatted := r.EarnedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
				ub.EarnedAt = &formatted
			}
		}
		out = append(out, ub)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Tier.Rank() < out[j].Tier.Rank()
	})
	return out, nil
}

// GetBadgeDetail returns one catalog entry with the user's progress.
func (s *BadgeService) GetBadgeDetail(externalUserID, code string) (*UserBadge, error) {
	badge, ok := models.BadgeByCode(code)
	if !ok {
		return nil, NewDomainError(KindNotFound, "badge %q not found", code)
	}

	ub := UserBadge{Badge: badge, Color: badge.Tier.Color(), State: models.BadgeStateLocked}
	var row models.BadgeProgress
	err := s.DB.Where("external_user_id = ? AND badge_code = ?", externalUserID, code).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapStore("load badge progress", err)
	}
	if err == nil {
		ub.Progress = row.Progress
		ub.State = row.State
		if row.EarnedAt != nil {
			formatted := row.EarnedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			ub.EarnedAt = &formatted
		}
	}
	return &ub, nil
}
