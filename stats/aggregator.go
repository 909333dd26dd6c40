// Package stats computes participation statistics and roster insights for
// a guild from its battles, participants and members.
package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/guildboard/guildboard/model"
	"github.com/guildboard/guildboard/report"
)

// PlayerStats is one row of the per-player participation listing.
type PlayerStats struct {
	Name  string `json:"name"`
	Rank  string `json:"rank"`
	Level int    `json:"level"`

	Total        int `json:"total"`
	Participated int `json:"participated"`
	Missed       int `json:"missed"`

	Attacks      int `json:"attacks"`
	AttacksIn    int `json:"attacks_in"`
	Defenses     int `json:"defenses"`
	DefensesIn   int `json:"defenses_in"`
	Raids        int `json:"raids"`
	RaidsIn      int `json:"raids_in"`

	Pct float64 `json:"pct"`
}

// BattleCounts is the guild-level battle tally.
type BattleCounts struct {
	Total    int `json:"total"`
	Attacks  int `json:"attacks"`
	Defenses int `json:"defenses"`
	Raids    int `json:"raids"`
}

// MissEntry is one row of the top-missing listing.
type MissEntry struct {
	Name   string `json:"name"`
	Missed int    `json:"missed"`
}

// Distribution buckets players by participation percentage.
type Distribution struct {
	AtLeast95 int `json:"at_least_95"`
	AtLeast85 int `json:"at_least_85"`
	AtLeast75 int `json:"at_least_75"`
	Below75   int `json:"below_75"`
}

// InactiveEntry is one row of the inactivity listing. DaysOffline is nil
// when the member has no recorded last-online date.
type InactiveEntry struct {
	Name        string `json:"name"`
	LastOnline  string `json:"last_online"`
	DaysOffline *int   `json:"days_offline"`
}

// Contribution is the pooled group-skill contribution summary.
type Contribution struct {
	GoldPct        float64 `json:"gold_pct"`
	MentorPct      float64 `json:"mentor_pct"`
	CompletedRaids int     `json:"completed_raids"`
}

// Insights bundles the guild-level rollups.
type Insights struct {
	AvgParticipation float64         `json:"avg_participation"`
	TopMissing       []MissEntry     `json:"top_missing"`
	Distribution     Distribution    `json:"distribution"`
	Inactive         []InactiveEntry `json:"inactive"`
	Contribution     Contribution    `json:"contribution"`
}

// GuildStats is the full stats payload for one guild.
type GuildStats struct {
	BattleCounts BattleCounts  `json:"battle_counts"`
	Players      []PlayerStats `json:"players"`
	Insights     Insights      `json:"insights"`
}

// Inactivity listing parameters.
const (
	inactiveAfterDays = 7
	inactiveListCap   = 12
	topMissingCap     = 5
)

// Aggregator computes guild statistics.
type Aggregator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAggregator creates an Aggregator using the wall clock.
func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// NewAggregatorWithClock creates an Aggregator with an injected clock.
func NewAggregatorWithClock(db *gorm.DB, now func() time.Time) *Aggregator {
	return &Aggregator{db: db, now: now}
}

// ComputeGuildStats joins the guild's participants against battles and the
// active roster and produces the full stats payload.
func (a *Aggregator) ComputeGuildStats(guildID int64) (*GuildStats, error) {
	var battles []model.Battle
	if err := a.db.Where("guild_id = ?", guildID).Find(&battles).Error; err != nil {
		return nil, err
	}
	battleByID := make(map[int64]*model.Battle, len(battles))
	for i := range battles {
		battleByID[battles[i].ID] = &battles[i]
	}

	var participants []model.Participant
	if err := a.db.Where("battle_id IN (?)",
		a.db.Model(&model.Battle{}).Select("id").Where("guild_id = ?", guildID)).
		Find(&participants).Error; err != nil {
		return nil, err
	}

	var members []model.Member
	if err := a.db.Where("guild_id = ?", guildID).Find(&members).Error; err != nil {
		return nil, err
	}
	// Lookup by lowercased display name; active members win over stale
	// fired/left rows with the same name.
	memberByName := make(map[string]*model.Member, len(members))
	for i := range members {
		m := &members[i]
		key := strings.ToLower(m.Name)
		if prev, ok := memberByName[key]; !ok || (!prev.Active() && m.Active()) {
			memberByName[key] = m
		}
	}

	out := &GuildStats{}
	for i := range battles {
		out.BattleCounts.Total++
		switch battles[i].Type {
		case model.BattleAttack:
			out.BattleCounts.Attacks++
		case model.BattleDefense:
			out.BattleCounts.Defenses++
		case model.BattleRaid:
			out.BattleCounts.Raids++
		}
	}

	// Group participants by normalized name.
	groups := make(map[string][]*model.Participant)
	for i := range participants {
		p := &participants[i]
		groups[p.NormName] = append(groups[p.NormName], p)
	}

	for _, group := range groups {
		member := matchMember(group, memberByName)
		// A stale match on a fired or left member still excludes the
		// group; they are no longer on the roster.
		if member != nil && !member.Active() {
			continue
		}

		ps := PlayerStats{Rank: model.RankOther}
		if member != nil {
			ps.Name = member.Name
			ps.Rank = member.Rank
			if member.Level != nil {
				ps.Level = *member.Level
			}
		} else {
			ps.Name = group[len(group)-1].Name
		}

		for _, p := range group {
			b := battleByID[p.BattleID]
			if b == nil {
				continue
			}
			ps.Total++
			if p.Participated {
				ps.Participated++
			}
			switch b.Type {
			case model.BattleAttack:
				ps.Attacks++
				if p.Participated {
					ps.AttacksIn++
				}
			case model.BattleDefense:
				ps.Defenses++
				if p.Participated {
					ps.DefensesIn++
				}
			case model.BattleRaid:
				ps.Raids++
				if p.Participated {
					ps.RaidsIn++
				}
			}
			if ps.Level == 0 && p.Level > 0 {
				ps.Level = p.Level
			}
		}
		if ps.Total == 0 {
			continue
		}
		ps.Missed = ps.Total - ps.Participated
		ps.Pct = round1(100 * float64(ps.Participated) / float64(ps.Total))
		out.Players = append(out.Players, ps)
	}

	sort.Slice(out.Players, func(i, j int) bool {
		p, q := out.Players[i], out.Players[j]
		if model.RankOrder(p.Rank) != model.RankOrder(q.Rank) {
			return model.RankOrder(p.Rank) < model.RankOrder(q.Rank)
		}
		if p.Pct != q.Pct {
			return p.Pct > q.Pct
		}
		if p.Total != q.Total {
			return p.Total > q.Total
		}
		return p.Name < q.Name
	})

	out.Insights = a.computeInsights(out.Players, battles, members)
	return out, nil
}

func (a *Aggregator) computeInsights(players []PlayerStats, battles []model.Battle, members []model.Member) Insights {
	var ins Insights

	if len(players) > 0 {
		sum := 0.0
		for _, p := range players {
			sum += p.Pct
		}
		// Simple mean over players, deliberately not weighted by
		// fight count.
		ins.AvgParticipation = round1(sum / float64(len(players)))
	}

	missing := make([]MissEntry, 0, len(players))
	for _, p := range players {
		if p.Missed > 0 {
			missing = append(missing, MissEntry{Name: p.Name, Missed: p.Missed})
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		if missing[i].Missed != missing[j].Missed {
			return missing[i].Missed > missing[j].Missed
		}
		return missing[i].Name < missing[j].Name
	})
	if len(missing) > topMissingCap {
		missing = missing[:topMissingCap]
	}
	ins.TopMissing = missing

	for _, p := range players {
		switch {
		case p.Pct >= 95:
			ins.Distribution.AtLeast95++
		case p.Pct >= 85:
			ins.Distribution.AtLeast85++
		case p.Pct >= 75:
			ins.Distribution.AtLeast75++
		default:
			ins.Distribution.Below75++
		}
	}

	ins.Inactive = a.inactiveMembers(members)

	completed := completedRaids(battles)
	var gold, mentor int64
	for i := range members {
		m := &members[i]
		if !m.Active() {
			continue
		}
		if m.Gold != nil {
			gold += *m.Gold
		}
		if m.Mentor != nil {
			mentor += *m.Mentor
		}
	}
	ins.Contribution = Contribution{
		GoldPct:        ContributionPct(gold, completed, 100),
		MentorPct:      ContributionPct(mentor, completed, 100),
		CompletedRaids: completed,
	}
	return ins
}

// inactiveMembers lists active members with no last-online date or one at
// least inactiveAfterDays old, longest offline first, capped.
func (a *Aggregator) inactiveMembers(members []model.Member) []InactiveEntry {
	now := a.now()
	var out []InactiveEntry
	for i := range members {
		m := &members[i]
		if !m.Active() {
			continue
		}
		if m.LastOnline == nil {
			out = append(out, InactiveEntry{Name: m.Name})
			continue
		}
		t, ok := parseDate(*m.LastOnline)
		if !ok {
			out = append(out, InactiveEntry{Name: m.Name, LastOnline: *m.LastOnline})
			continue
		}
		days := int(now.Sub(t).Hours() / 24)
		if days >= inactiveAfterDays {
			d := days
			out = append(out, InactiveEntry{Name: m.Name, LastOnline: *m.LastOnline, DaysOffline: &d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DaysOffline, out[j].DaysOffline
		// Unknown last-online sorts above every known value.
		switch {
		case di == nil && dj == nil:
			return out[i].Name < out[j].Name
		case di == nil:
			return true
		case dj == nil:
			return false
		case *di != *dj:
			return *di > *dj
		default:
			return out[i].Name < out[j].Name
		}
	})
	if len(out) > inactiveListCap {
		out = out[:inactiveListCap]
	}
	return out
}

// ContributionPct converts a pooled contribution total into a percentage:
// a raid-completion bonus of 10 points per completed raid (at most 50) is
// added, the sum capped at 1000 and divided by 5, then capped again at
// maxPct. Callers pass 100 for the current metric and 200 for the legacy
// variant shown on the guild overview.
func ContributionPct(total int64, completedRaids int, maxPct float64) float64 {
	if completedRaids > report.StageCount {
		completedRaids = report.StageCount
	}
	pooled := float64(total) + float64(completedRaids)*10
	if pooled > 1000 {
		pooled = 1000
	}
	pct := pooled / 5
	if pct > maxPct {
		pct = maxPct
	}
	if pct < 0 {
		pct = 0
	}
	return round1(pct)
}

// LegacyContribution computes the guild-overview contribution summary,
// which historically caps at 200 instead of 100. Both variants are kept
// until the discrepancy is resolved.
func (a *Aggregator) LegacyContribution(guildID int64) (Contribution, error) {
	var battles []model.Battle
	if err := a.db.Where("guild_id = ? AND type = ?", guildID, model.BattleRaid).
		Find(&battles).Error; err != nil {
		return Contribution{}, err
	}
	var members []model.Member
	if err := a.db.Where("guild_id = ? AND fired_at IS NULL AND left_at IS NULL", guildID).
		Find(&members).Error; err != nil {
		return Contribution{}, err
	}

	completed := completedRaids(battles)
	var gold, mentor int64
	for i := range members {
		if members[i].Gold != nil {
			gold += *members[i].Gold
		}
		if members[i].Mentor != nil {
			mentor += *members[i].Mentor
		}
	}
	return Contribution{
		GoldPct:        ContributionPct(gold, completed, 200),
		MentorPct:      ContributionPct(mentor, completed, 200),
		CompletedRaids: completed,
	}, nil
}

// completedRaids derives the completed-raid count from the highest raid id
// seen across the guild's raid battles.
func completedRaids(battles []model.Battle) int {
	maxID := 0
	for i := range battles {
		b := &battles[i]
		if b.Type != model.BattleRaid {
			continue
		}
		id := b.RaidID
		if id == 0 {
			id = report.ResolveID(b.Opponent)
		}
		if id > maxID {
			maxID = id
		}
	}
	return report.CompletedRaids(maxID)
}

// matchMember finds the roster entry for a participant group: the display
// name matched case-insensitively, then with the server tag stripped, then
// the stripped name with the tag re-appended as "name (tag)". The latter
// forms bridge records created before a player added or removed the tag in
// their display name.
func matchMember(group []*model.Participant, byName map[string]*model.Member) *model.Member {
	for _, p := range group {
		if m, ok := byName[strings.ToLower(p.Name)]; ok {
			return m
		}
		if m, ok := byName[p.NormName]; ok {
			return m
		}
		if p.ServerTag != "" {
			if m, ok := byName[p.NormName+" ("+p.ServerTag+")"]; ok {
				return m
			}
		}
	}
	return nil
}

// parseDate accepts ISO dates and the legacy DD.MM.YYYY export format.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse("02.01.2006", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
