package workers

import (
	"context"
	"log"
	"time"

	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"gorm.io/gorm"
)

// LedgerReconciler periodically recomputes every user's XP total from the
// append-only ledger and repairs the denormalized user_progress row when it
// has drifted. The ledger is the source of truth; user_progress is a cache.
type LedgerReconciler struct {
	DB *gorm.DB
}

func NewLedgerReconciler(db *gorm.DB) *LedgerReconciler {
	return &LedgerReconciler{DB: db}
}

type ledgerTotal struct {
	ExternalUserID string
	Total          int64
}

// Poll runs the reconciliation loop until the context is cancelled.
func Poll(ctx context.Context, r *LedgerReconciler, pollInterval time.Duration) {
	log.Println("Starting ledger reconciliation polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ledger reconciliation stopped.")
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(); err != nil {
				log.Printf("❌ Ledger reconciliation failed: %v", err)
			}
		}
	}
}

// ReconcileOnce compares ledger sums against user_progress and fixes drift.
func (r *LedgerReconciler) ReconcileOnce() error {
	var totals []ledgerTotal
	err := r.DB.Model(&models.XPTransaction{}).
		Select("external_user_id, COALESCE(SUM(amount), 0) AS total").
		Group("external_user_id").
		Scan(&totals).Error
	if err != nil {
		return err
	}

	var repaired int
	for _, t := range totals {
		var prog models.UserProgress
		if err := r.DB.Where("external_user_id = ?", t.ExternalUserID).First(&prog).Error; err != nil {
			log.Printf("⚠️ No progress row for user %s with ledger total %d", t.ExternalUserID, t.Total)
			continue
		}
		if prog.TotalXP == t.Total {
			continue
		}

		log.Printf("⚠️ XP drift for user %s: progress=%d ledger=%d — repairing",
			t.ExternalUserID, prog.TotalXP, t.Total)

		err := r.DB.Model(&models.UserProgress{}).
			Where("external_user_id = ?", t.ExternalUserID).
			Updates(map[string]interface{}{
				"total_xp": t.Total,
				"level":    services.LevelForXP(t.Total),
			}).Error
		if err != nil {
			log.Printf("❌ Failed to repair user %s: %v", t.ExternalUserID, err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		log.Printf("✅ Repaired %d drifted progress row(s)", repaired)
	}
	return nil
}
