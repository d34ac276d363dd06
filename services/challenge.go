package services

import (
	"errors"
	"log"

	"habit-gamification-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// ChallengeService tracks per-participant progress against shared challenges,
// marks completion exactly once, and serves ranked leaderboards.
type ChallengeService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Clock  clockwork.Clock
}

func NewChallengeService(db *gorm.DB, ledger *LedgerService, clock clockwork.Clock) *ChallengeService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ChallengeService{DB: db, Ledger: ledger, Clock: clock}
}

// CreateChallenge registers a new challenge and derives its URL slug from
// the title, suffixed with an id fragment when the title is already taken.
func (s *ChallengeService) CreateChallenge(ch *models.Challenge) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.Slug == "" {
		base := slug.Make(ch.Title)
		var taken int64
		if err := s.DB.Model(&models.Challenge{}).Where("slug = ?", base).Count(&taken).Error; err != nil {
			return wrapStore("check slug", err)
		}
		if taken > 0 {
			base = base + "-" + ch.ID[:8]
		}
		ch.Slug = base
	}
	if ch.Status == "" {
		ch.Status = models.ChallengeActive
	}
	if !ch.TargetType.Valid() {
		return NewDomainError(KindConsistency, "unknown challenge target type %q", ch.TargetType)
	}
	if ch.Difficulty.XPReward() == 0 {
		return NewDomainError(KindConsistency, "unknown challenge difficulty %q", ch.Difficulty)
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return wrapStore("create challenge", err)
	}
	return nil
}

// Join creates a participant row in state joined with zero progress.
// Rejects when the user already joined or the challenge has ended.
func (s *ChallengeService) Join(externalUserID, challengeID string) (*models.ChallengeParticipant, error) {
	ch, err := s.getChallenge(s.DB, challengeID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	if ch.Status == models.ChallengeEnded || now.After(ch.EndDate) {
		return nil, NewDomainError(KindChallengeExpired, "challenge %q ended at %s", ch.Title, ch.EndDate.Format("2006-01-02"))
	}

	var count int64
	if err := s.DB.Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ? AND external_user_id = ?", challengeID, externalUserID).
		Count(&count).Error; err != nil {
		return nil, wrapStore("check participant", err)
	}
	if count > 0 {
		return nil, NewDomainError(KindChallengeAlreadyJoined, "already joined challenge %q", ch.Title)
	}

	p := models.ChallengeParticipant{
		ID:             uuid.NewString(),
		ChallengeID:    challengeID,
		ExternalUserID: externalUserID,
		JoinedAt:       now,
		Progress:       0,
		State:          models.ParticipantJoined,
	}
	if err := s.DB.Create(&p).Error; err != nil {
		return nil, wrapStore("create participant", err)
	}
	return &p, nil
}

// Leave removes the participant row entirely — no partial-progress carryover
// if the user rejoins later.
func (s *ChallengeService) Leave(externalUserID, challengeID string) error {
	res := s.DB.Unscoped().
		Where("challenge_id = ? AND external_user_id = ?", challengeID, externalUserID).
		Delete(&models.ChallengeParticipant{})
	if res.Error != nil {
		return wrapStore("delete participant", res.Error)
	}
	if res.RowsAffected == 0 {
		return NewDomainError(KindChallengeNotJoined, "not a participant of challenge %s", challengeID)
	}
	return nil
}

// ProgressEvent carries what a completion event already knows, so progress
// recomputation doesn't refetch it.
type ProgressEvent struct {
	HabitID string
	Date    string
	Streak  int
}

// ChallengeUpdate reports the effect of one event on one joined challenge.
type ChallengeUpdate struct {
	ChallengeID string                     `json:"challenge_id"`
	Title       string                     `json:"title"`
	TargetType  models.ChallengeTargetType `json:"target_type"`
	Progress    int64                      `json:"progress"`
	TargetValue int64                      `json:"target_value"`
	State       models.ParticipantState    `json:"state"`
	Completed   bool                       `json:"completed"` // true when this event completed it
	XPAwarded   int64                      `json:"xp_awarded,omitempty"`
}

// UpdateProgress recomputes progress for every challenge the user has joined
// and completes any whose target is met. Runs inside the caller's event
// transaction. Progress counts only events inside the participant's window
// (joinedAt .. challenge end) and never decreases; completion is a
// conditional update on state = joined so it fires exactly once.
func (s *ChallengeService) UpdateProgress(tx *gorm.DB, externalUserID string, event ProgressEvent) ([]ChallengeUpdate, error) {
	var participants []models.ChallengeParticipant
	err := tx.Preload("Challenge").
		Where("external_user_id = ?", externalUserID).
		Find(&participants).Error
	if err != nil {
		return nil, wrapStore("load participants", err)
	}

	now := s.Clock.Now().UTC()
	var updates []ChallengeUpdate

	for _, p := range participants {
		ch := p.Challenge
		if ch.Status == models.ChallengeEnded || now.After(ch.EndDate) {
			continue
		}

		value, err := s.measure(tx, &ch, &p, event)
		if err != nil {
			return nil, err
		}

		// monotonic: an undo elsewhere never rolls banked progress back
		err = tx.Model(&models.ChallengeParticipant{}).
			Where("id = ?", p.ID).
			Update("progress", gorm.Expr("CASE WHEN progress >= ? THEN progress ELSE ? END", value, value)).Error
		if err != nil {
			return nil, wrapStore("raise challenge progress", err)
		}

		var fresh models.ChallengeParticipant
		if err := tx.Where("id = ?", p.ID).First(&fresh).Error; err != nil {
			return nil, wrapStore("reload participant", err)
		}

		update := ChallengeUpdate{
			ChallengeID: ch.ID,
			Title:       ch.Title,
			TargetType:  ch.TargetType,
			Progress:    fresh.Progress,
			TargetValue: ch.TargetValue,
			State:       fresh.State,
		}

		if fresh.Progress >= ch.TargetValue {
			res := tx.Model(&models.ChallengeParticipant{}).
				Where("id = ? AND state = ?", p.ID, models.ParticipantJoined).
				Updates(map[string]interface{}{
					"state":        models.ParticipantCompleted,
					"completed_at": now,
				})
			if res.Error != nil {
				return nil, wrapStore("complete participant", res.Error)
			}
			if res.RowsAffected == 1 {
				reward := ch.Difficulty.XPReward()
				if _, err := s.Ledger.Grant(tx, externalUserID, reward, models.SourceChallengeComplete, ch.ID, ""); err != nil {
					return nil, err
				}
				update.State = models.ParticipantCompleted
				update.Completed = true
				update.XPAwarded = reward
				log.Printf("🏁 Challenge completed: user=%s challenge=%s (+%d XP)", externalUserID, ch.Slug, reward)
			}
		}

		updates = append(updates, update)
	}

	return updates, nil
}

// measure computes the candidate progress value for one participant.
func (s *ChallengeService) measure(tx *gorm.DB, ch *models.Challenge, p *models.ChallengeParticipant, event ProgressEvent) (int64, error) {
	switch ch.TargetType {
	case models.TargetDailyCompletions:
		var days int64
		err := tx.Model(&models.HabitLog{}).
			Where("external_user_id = ? AND completed = ? AND created_at >= ? AND created_at <= ?",
				p.ExternalUserID, true, p.JoinedAt, ch.EndDate).
			Distinct("log_date").
			Count(&days).Error
		if err != nil {
			return 0, wrapStore("count distinct days", err)
		}
		return days, nil

	case models.TargetStreakDays:
		v := int64(event.Streak)
		if v > ch.TargetValue {
			v = ch.TargetValue
		}
		return v, nil

	case models.TargetTotalCompletions:
		var count int64
		err := tx.Model(&models.HabitLog{}).
			Where("external_user_id = ? AND completed = ? AND created_at >= ? AND created_at <= ?",
				p.ExternalUserID, true, p.JoinedAt, ch.EndDate).
			Count(&count).Error
		if err != nil {
			return 0, wrapStore("count completions", err)
		}
		return count, nil

	case models.TargetXPGain:
		var sum int64
		err := tx.Model(&models.XPTransaction{}).
			Where("external_user_id = ? AND amount > 0 AND created_at >= ? AND created_at <= ?",
				p.ExternalUserID, p.JoinedAt, ch.EndDate).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error
		if err != nil {
			return 0, wrapStore("sum xp gain", err)
		}
		return sum, nil
	}
	return 0, NewDomainError(KindConsistency, "unknown challenge target type %q", ch.TargetType)
}

// LeaderboardEntry is one ranked row of a challenge leaderboard.
type LeaderboardEntry struct {
	Rank           int                     `json:"rank"`
	ExternalUserID string                  `json:"external_user_id"`
	Username       string                  `json:"username,omitempty"`
	Progress       int64                   `json:"progress"`
	State          models.ParticipantState `json:"state"`
	CompletedAt    *string                 `json:"completed_at,omitempty"`
	JoinedAt       string                  `json:"joined_at"`
}

// Leaderboard ranks participants by progress descending; on equal progress a
// completed participant outranks a joined one, earlier completion outranks
// later, then earlier join wins.
func (s *ChallengeService) Leaderboard(challengeID string) ([]LeaderboardEntry, error) {
	if _, err := s.getChallenge(s.DB, challengeID); err != nil {
		return nil, err
	}

	var participants []models.ChallengeParticipant
	err := s.DB.Where("challenge_id = ?", challengeID).
		Order("progress DESC").
		Order("CASE WHEN state = 'completed' THEN 0 ELSE 1 END ASC").
		Order("completed_at ASC").
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, wrapStore("load leaderboard", err)
	}

	// merge usernames from the local user snapshots
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ExternalUserID)
	}
	usernames := map[string]string{}
	if len(ids) > 0 {
		var users []models.HabitUser
		if err := s.DB.Where("external_user_id IN ?", ids).Find(&users).Error; err != nil {
			return nil, wrapStore("load usernames", err)
		}
		for _, u := range users {
			usernames[u.ExternalUserID] = u.Username
		}
	}

	entries := make([]LeaderboardEntry, 0, len(participants))
	for i, p := range participants {
		e := LeaderboardEntry{
			Rank:           i + 1,
			ExternalUserID: p.ExternalUserID,
			Username:       usernames[p.ExternalUserID],
			Progress:       p.Progress,
			State:          p.State,
			JoinedAt:       p.JoinedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if p.CompletedAt != nil {
			formatted := p.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			e.CompletedAt = &formatted
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// UserChallenge merges a challenge with the caller's participation, if any.
type UserChallenge struct {
	models.Challenge
	Joined      bool                    `json:"joined"`
	Progress    int64                   `json:"progress,omitempty"`
	State       models.ParticipantState `json:"state,omitempty"`
	CompletedAt *string                 `json:"completed_at,omitempty"`
}

// GetChallenges lists challenges with the user's participation merged in,
// active first, newest first.
func (s *ChallengeService) GetChallenges(externalUserID string) ([]UserChallenge, error) {
	var challenges []models.Challenge
	err := s.DB.Order("status ASC").Order("end_date DESC").Find(&challenges).Error
	if err != nil {
		return nil, wrapStore("load challenges", err)
	}

	var participants []models.ChallengeParticipant
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&participants).Error; err != nil {
		return nil, wrapStore("load participations", err)
	}
	byChallenge := make(map[string]models.ChallengeParticipant, len(participants))
	for _, p := range participants {
		byChallenge[p.ChallengeID] = p
	}

	out := make([]UserChallenge, 0, len(challenges))
	for _, ch := range challenges {
		var count int64
		if err := s.DB.Model(&models.ChallengeParticipant{}).
			Where("challenge_id = ?", ch.ID).Count(&count).Error; err != nil {
			return nil, wrapStore("count participants", err)
		}
		ch.ParticipantCount = count

		uc := UserChallenge{Challenge: ch}
		if p, ok := byChallenge[ch.ID]; ok {
			uc.Joined = true
			uc.Progress = p.Progress
			uc.State = p.State
			if p.CompletedAt != nil {
				formatted := p.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
				uc.CompletedAt = &formatted
			}
		}
		out = append(out, uc)
	}
	return out, nil
}

// GetHistory returns the user's participations, newest join first.
func (s *ChallengeService) GetHistory(externalUserID string) ([]models.ChallengeParticipant, error) {
	var participants []models.ChallengeParticipant
	err := s.DB.Preload("Challenge").
		Where("external_user_id = ?", externalUserID).
		Order("joined_at DESC").
		Find(&participants).Error
	if err != nil {
		return nil, wrapStore("load challenge history", err)
	}
	return participants, nil
}

func (s *ChallengeService) getChallenge(tx *gorm.DB, challengeID string) (*models.Challenge, error) {
	var ch models.Challenge
	if err := tx.Where("id = ?", challengeID).First(&ch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewDomainError(KindNotFound, "challenge %s not found", challengeID)
		}
		return nil, wrapStore("load challenge", err)
	}
	return &ch, nil
}
