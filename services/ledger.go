package services

import (
	"errors"
	"log"
	"time"

	"habit-gamification-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// LedgerService owns the append-only XP transaction log and the denormalized
// per-user totals derived from it. Rows are never mutated; a reversal is a
// new negative row referencing the original, so the history stays auditable.
type LedgerService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewLedgerService(db *gorm.DB, clock clockwork.Clock) *LedgerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LedgerService{DB: db, Clock: clock}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent).
func (s *LedgerService) EnsureProgressRecord(tx *gorm.DB, externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := tx.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserProgress{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			TotalXP:        0,
			Level:          1,
		}
		if err := tx.Create(&prog).Error; err != nil {
			return nil, wrapStore("create progress record", err)
		}
		return &prog, nil
	}
	if err != nil {
		return nil, wrapStore("load progress record", err)
	}
	return &prog, nil
}

// Grant appends a positive transaction and bumps the user's totals in the
// same tx. Callers sequence Grant inside the event transaction so a failure
// anywhere rolls the whole event back.
func (s *LedgerService) Grant(tx *gorm.DB, externalUserID string, amount int64, source models.XPSource, sourceID, correlationID string) (*models.XPTransaction, error) {
	if amount <= 0 {
		return nil, NewDomainError(KindConsistency, "grant amount must be positive, got %d", amount)
	}
	if !source.Valid() {
		return nil, NewDomainError(KindConsistency, "unknown xp source %q", source)
	}

	txn := models.XPTransaction{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Amount:         amount,
		Source:         source,
		SourceID:       sourceID,
		CorrelationID:  correlationID,
		CreatedAt:      s.Clock.Now().UTC(),
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, wrapStore("append xp grant", err)
	}

	if err := s.applyToProgress(tx, externalUserID, amount); err != nil {
		return nil, err
	}

	log.Printf("🎮 XP granted: user=%s +%d (%s/%s)", externalUserID, amount, source, sourceID)
	return &txn, nil
}

// Reverse appends a negative row undoing the original grant. Idempotent:
// reversing the same original twice returns the existing reversal without
// double-subtracting (enforced both here and by the unique index on
// reversal_of). Fails with a consistency error rather than clamping if the
// user's total would go negative.
func (s *LedgerService) Reverse(tx *gorm.DB, originalID string) (*models.XPTransaction, error) {
	var original models.XPTransaction
	if err := tx.Where("id = ?", originalID).First(&original).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewDomainError(KindConsistency, "reversal has no matching original transaction %s", originalID)
		}
		return nil, wrapStore("load original transaction", err)
	}
	if original.Amount <= 0 {
		return nil, NewDomainError(KindConsistency, "transaction %s is not a grant and cannot be reversed", originalID)
	}

	var existing models.XPTransaction
	err := tx.Where("reversal_of = ?", originalID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapStore("check existing reversal", err)
	}

	total, err := s.sumAmounts(tx, original.ExternalUserID)
	if err != nil {
		return nil, err
	}
	if total-original.Amount < 0 {
		return nil, NewDomainError(KindConsistency,
			"reversing %s would take user %s to %d XP", originalID, original.ExternalUserID, total-original.Amount)
	}

	reversal := models.XPTransaction{
		ID:             uuid.NewString(),
		ExternalUserID: original.ExternalUserID,
		Amount:         -original.Amount,
		Source:         original.Source,
		SourceID:       original.SourceID,
		CorrelationID:  original.CorrelationID,
		ReversalOf:     &original.ID,
		CreatedAt:      s.Clock.Now().UTC(),
	}
	if err := tx.Create(&reversal).Error; err != nil {
		return nil, wrapStore("append xp reversal", err)
	}

	if err := s.applyToProgress(tx, original.ExternalUserID, -original.Amount); err != nil {
		return nil, err
	}

	log.Printf("↩️  XP reversed: user=%s -%d (%s/%s)", original.ExternalUserID, original.Amount, original.Source, original.SourceID)
	return &reversal, nil
}

// ReverseByCorrelation reverses every un-reversed grant carrying the given
// correlation key and returns the reversal rows appended.
func (s *LedgerService) ReverseByCorrelation(tx *gorm.DB, externalUserID, correlationID string) ([]models.XPTransaction, error) {
	var grants []models.XPTransaction
	err := tx.Where("external_user_id = ? AND correlation_id = ? AND amount > 0", externalUserID, correlationID).
		Order("created_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, wrapStore("load grants for correlation", err)
	}

	var reversals []models.XPTransaction
	for _, g := range grants {
		var count int64
		if err := tx.Model(&models.XPTransaction{}).Where("reversal_of = ?", g.ID).Count(&count).Error; err != nil {
			return reversals, wrapStore("check reversal", err)
		}
		if count > 0 {
			continue
		}
		rev, err := s.Reverse(tx, g.ID)
		if err != nil {
			return reversals, err
		}
		reversals = append(reversals, *rev)
	}
	return reversals, nil
}

// applyToProgress folds a signed delta into the denormalized totals and
// recomputes the level from the fixed curve.
func (s *LedgerService) applyToProgress(tx *gorm.DB, externalUserID string, delta int64) error {
	prog, err := s.EnsureProgressRecord(tx, externalUserID)
	if err != nil {
		return err
	}

	prog.TotalXP += delta
	if prog.TotalXP < 0 {
		return NewDomainError(KindConsistency, "user %s total xp would be %d", externalUserID, prog.TotalXP)
	}

	newLevel := LevelForXP(prog.TotalXP)
	if newLevel > prog.Level {
		now := s.Clock.Now().UTC()
		prog.LastLevelUpAt = &now
	}
	prog.Level = newLevel

	if err := tx.Save(prog).Error; err != nil {
		return wrapStore("save progress record", err)
	}
	return nil
}

// TotalXP sums the user's ledger.
func (s *LedgerService) TotalXP(externalUserID string) (int64, error) {
	return s.sumAmounts(s.DB, externalUserID)
}

func (s *LedgerService) sumAmounts(tx *gorm.DB, externalUserID string) (int64, error) {
	var total int64
	err := tx.Model(&models.XPTransaction{}).
		Where("external_user_id = ?", externalUserID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, wrapStore("sum ledger", err)
	}
	return total, nil
}

// SourceBreakdownEntry is the per-source slice of the user's total.
type SourceBreakdownEntry struct {
	Source models.XPSource `json:"source"`
	Label  string          `json:"label"`
	Amount int64           `json:"amount"`
}

// XPBreakdown is the full XP summary served to clients.
type XPBreakdown struct {
	TotalXP         int64                  `json:"total_xp"`
	Level           int                    `json:"level"`
	LevelProgress   LevelProgress          `json:"level_progress"`
	XPToday         int64                  `json:"xp_today"`
	XPThisWeek      int64                  `json:"xp_this_week"`
	XPThisMonth     int64                  `json:"xp_this_month"`
	SourceBreakdown []SourceBreakdownEntry `json:"source_breakdown"`
	Economy         EconomySummary         `json:"economy"`
}

// EconomySummary echoes the fixed economy constants so clients can render
// "next bonus at" hints without hardcoding them.
type EconomySummary struct {
	BaseCompletionXP int64            `json:"base_completion_xp"`
	PerfectDayXP     int64            `json:"perfect_day_xp"`
	StreakMilestones map[int]int64    `json:"streak_milestones"`
	DifficultyXP     map[string]int64 `json:"difficulty_xp"`
}

func economySummary() EconomySummary {
	return EconomySummary{
		BaseCompletionXP: BaseCompletionXP,
		PerfectDayXP:     PerfectDayXP,
		StreakMilestones: StreakMilestones,
		DifficultyXP: map[string]int64{
			string(models.DifficultyEasy):    models.DifficultyEasy.XPReward(),
			string(models.DifficultyMedium):  models.DifficultyMedium.XPReward(),
			string(models.DifficultyHard):    models.DifficultyHard.XPReward(),
			string(models.DifficultyExtreme): models.DifficultyExtreme.XPReward(),
		},
	}
}

// GetBreakdown assembles the XP summary: totals, level curve position, time
// windows, and per-source slices.
func (s *LedgerService) GetBreakdown(externalUserID string) (*XPBreakdown, error) {
	total, err := s.TotalXP(externalUserID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -int((now.Weekday()+6)%7)) // Monday
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	windowSum := func(since time.Time) (int64, error) {
		var sum int64
		err := s.DB.Model(&models.XPTransaction{}).
			Where("external_user_id = ? AND created_at >= ?", externalUserID, since).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error
		if err != nil {
			return 0, wrapStore("sum ledger window", err)
		}
		return sum, nil
	}

	today, err := windowSum(dayStart)
	if err != nil {
		return nil, err
	}
	week, err := windowSum(weekStart)
	if err != nil {
		return nil, err
	}
	month, err := windowSum(monthStart)
	if err != nil {
		return nil, err
	}

	breakdown := make([]SourceBreakdownEntry, 0, len(models.XPSources))
	for _, src := range models.XPSources {
		var sum int64
		err := s.DB.Model(&models.XPTransaction{}).
			Where("external_user_id = ? AND source = ?", externalUserID, src).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error
		if err != nil {
			return nil, wrapStore("sum ledger source", err)
		}
		breakdown = append(breakdown, SourceBreakdownEntry{Source: src, Label: src.Label(), Amount: sum})
	}

	return &XPBreakdown{
		TotalXP:         total,
		Level:           LevelForXP(total),
		LevelProgress:   ComputeLevelProgress(total),
		XPToday:         today,
		XPThisWeek:      week,
		XPThisMonth:     month,
		SourceBreakdown: breakdown,
		Economy:         economySummary(),
	}, nil
}

// XPHistory is one page of the user's transaction log, newest first.
type XPHistory struct {
	Transactions []models.XPTransaction `json:"transactions"`
	Total        int64                  `json:"total"`
	HasMore      bool                   `json:"has_more"`
}

// GetHistory pages through the user's ledger.
func (s *LedgerService) GetHistory(externalUserID string, limit, offset int) (*XPHistory, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.DB.Model(&models.XPTransaction{}).
		Where("external_user_id = ?", externalUserID).
		Count(&total).Error; err != nil {
		return nil, wrapStore("count ledger", err)
	}

	var txns []models.XPTransaction
	if err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&txns).Error; err != nil {
		return nil, wrapStore("page ledger", err)
	}

	return &XPHistory{
		Transactions: txns,
		Total:        total,
		HasMore:      int64(offset+len(txns)) < total,
	}, nil
}
