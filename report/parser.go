// Package report parses raw battle-report text into structured records.
// Two dialects are supported: pasted client text (German headline plus
// member sections) and machine-fetched text with a labeled header block.
package report

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/guildboard/guildboard/identity"
	"github.com/guildboard/guildboard/model"
)

// Parse failures. A bad headline fails the whole parse; malformed
// participant lines are skipped silently.
var (
	ErrEmpty           = errors.New("report: empty input")
	ErrUnknownHeadline = errors.New("report: unrecognized headline")
	ErrBadHeader       = errors.New("report: malformed header block")
)

// Participant is one player entry in a parsed report.
type Participant struct {
	Name         string `json:"name"`
	Level        int    `json:"level"`
	ServerTag    string `json:"server_tag"`
	Participated bool   `json:"participated"`
}

// Report is the structured form of one battle report. Date, Time and
// MessageID are only set for the fetched dialect; pasted reports carry no
// timestamp of their own.
type Report struct {
	Type      string `json:"type"`
	Opponent  string `json:"opponent"`
	RaidID    int    `json:"raid_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	MessageID string `json:"message_id"`

	Participants []Participant `json:"participants"`
}

// FetchedMarker opens a machine-fetched report; EndHeaderMarker closes its
// header block.
const (
	FetchedMarker   = "=== GUILDBOARD REPORT ==="
	EndHeaderMarker = "=== END HEADER ==="
)

var (
	// Client markup the game engine embeds in copied text.
	markupRe = regexp.MustCompile(`\[/?(?:voffset|sprite|icon|color)[^\]]*\]`)

	attackRe  = regexp.MustCompile(`^Angriff auf (.+)$`)
	defenseRe = regexp.MustCompile(`^Verteidigung gegen Angreifer: (.+)$`)
	raidRe    = regexp.MustCompile(`^Raid "?(.*?)"?$`)

	// Name (Stufe N) — Name may itself contain a parenthetical tag.
	playerRe = regexp.MustCompile(`^(.+?)\s*\(Stufe\s*(\d+)\)$`)

	numericRe = regexp.MustCompile(`^\d+$`)
)

// Parse converts raw report text into a Report. The dialect is detected
// structurally: fetched reports start with FetchedMarker, everything else
// is treated as pasted client text.
func Parse(raw string) (*Report, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(strings.TrimSpace(raw), FetchedMarker) {
		return parseFetched(raw)
	}
	return parsePasted(raw)
}

func parsePasted(raw string) (*Report, error) {
	lines := cleanLines(raw)
	if len(lines) == 0 {
		return nil, ErrEmpty
	}

	rep := &Report{}
	head := lines[0]
	switch {
	case attackRe.MatchString(head):
		rep.Type = model.BattleAttack
		rep.Opponent = strings.TrimSpace(attackRe.FindStringSubmatch(head)[1])
	case defenseRe.MatchString(head):
		rep.Type = model.BattleDefense
		rep.Opponent = strings.TrimSpace(defenseRe.FindStringSubmatch(head)[1])
	case raidRe.MatchString(head):
		rep.Type = model.BattleRaid
		rep.Opponent = strings.TrimSpace(raidRe.FindStringSubmatch(head)[1])
	default:
		return nil, ErrUnknownHeadline
	}

	rep.Participants = scanParticipants(lines[1:], true)
	return rep, nil
}

func parseFetched(raw string) (*Report, error) {
	lines := cleanLines(raw)
	if len(lines) < 2 || lines[0] != FetchedMarker {
		return nil, ErrBadHeader
	}

	rep := &Report{}
	bodyStart := -1
	for i, line := range lines[1:] {
		if line == EndHeaderMarker {
			bodyStart = i + 2
			break
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "Gegner":
			rep.Opponent = val
		case "Typ":
			switch val {
			case "Angriff":
				rep.Type = model.BattleAttack
			case "Verteidigung":
				rep.Type = model.BattleDefense
			case "Raid":
				rep.Type = model.BattleRaid
			default:
				return nil, ErrBadHeader
			}
		case "Datum":
			rep.Date = val
		case "Zeit":
			rep.Time = val
		case "Nachricht":
			rep.MessageID = val
		}
	}
	if bodyStart < 0 || rep.Type == "" {
		return nil, ErrBadHeader
	}

	// Fetched raid reports identify the stage numerically; resolve to the
	// display name and keep the id.
	if rep.Type == model.BattleRaid && numericRe.MatchString(rep.Opponent) {
		if id, err := strconv.Atoi(rep.Opponent); err == nil && id > 0 {
			rep.RaidID = id
			rep.Opponent = ResolveName(id)
		}
	}

	rep.Participants = scanParticipants(lines[bodyStart:], false)
	return rep, nil
}

// scanParticipants walks body lines assigning Name (Stufe N) entries to the
// current section. Lines before any section marker are skipped. The pasted
// dialect additionally skips known header lines that happen to be
// interleaved in copied text.
func scanParticipants(lines []string, skipHeaders bool) []Participant {
	const (
		sectionNone = iota
		sectionIn
		sectionOut
	)
	section := sectionNone

	var out []Participant
	for _, line := range lines {
		if strings.Contains(line, "nicht teilgenommen haben") {
			section = sectionOut
			continue
		}
		if strings.Contains(line, "teilgenommen haben") {
			section = sectionIn
			continue
		}
		if section == sectionNone {
			continue
		}
		if skipHeaders && (strings.HasPrefix(line, "Angriff") ||
			strings.HasPrefix(line, "Verteidigung") ||
			strings.HasPrefix(line, "Mitglieder")) {
			continue
		}
		m := playerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		out = append(out, Participant{
			Name:         name,
			Level:        level,
			ServerTag:    identity.ExtractTag(name),
			Participated: section == sectionIn,
		})
	}
	return out
}

// cleanLines strips engine markup and blank lines, returning trimmed lines.
func cleanLines(raw string) []string {
	raw = markupRe.ReplaceAllString(raw, "")
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
