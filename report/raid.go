package report

import (
	"fmt"
	"regexp"
	"strings"
)

// raidStages is the fixed 50-entry raid stage table. Raid ids cycle through
// it: id 51 is stage 1 again, displayed with a Roman-numeral cycle suffix.
var raidStages = [...]string{
	"Verlassene Mine",
	"Sumpf der Verlorenen",
	"Hügelgrab",
	"Wolfshöhle",
	"Brennende Mühle",
	"Kristallgrotte",
	"Festung Eisenwacht",
	"Nebelmoor",
	"Turm des Sehers",
	"Schattenkluft",
	"Verfluchter Friedhof",
	"Eisige Schlucht",
	"Drachenodem-Pass",
	"Katakomben von Arnstedt",
	"Pilzwald",
	"Flammenschlund",
	"Versunkene Kathedrale",
	"Spinnennest",
	"Halle der Echos",
	"Obsidianbruch",
	"Gefrorener See",
	"Banditenlager",
	"Alte Zwergenschmiede",
	"Dornengarten",
	"Leuchtturm von Seefall",
	"Grube der Ghule",
	"Sturmklippen",
	"Tempel der Asche",
	"Blutmoor",
	"Zerbrochene Brücke",
	"Kammer des Lichs",
	"Salzwüste",
	"Wurzellabyrinth",
	"Himmelsnadel",
	"Rostfeld",
	"Kloster der Stille",
	"Giftige Quellen",
	"Werft der Toten",
	"Bernsteinhöhle",
	"Galgenhügel",
	"Smaragdterrassen",
	"Knochengrube",
	"Sternwarte",
	"Lavastrom",
	"Vergessene Bibliothek",
	"Golemwerkstatt",
	"Raben-Aerie",
	"Tiefenbrunnen",
	"Spiegelsaal",
	"Thron des Raidfürsten",
}

// StageCount is the length of the raid stage table.
const StageCount = len(raidStages)

var cycleSuffixRe = regexp.MustCompile(`^(.*?)\s*\(([IVXLCDM]+)\)$`)

// ResolveName maps a numeric raid id to its display name, appending a
// Roman-numeral cycle marker from the second cycle on, e.g. id 53 →
// "Hügelgrab (II)". Ids below 1 resolve to "".
func ResolveName(id int) string {
	if id < 1 {
		return ""
	}
	stage := (id-1)%StageCount + 1
	cycle := (id-1)/StageCount + 1
	name := raidStages[stage-1]
	if cycle > 1 {
		return fmt.Sprintf("%s (%s)", name, toRoman(cycle))
	}
	return name
}

// ResolveID is the inverse of ResolveName: it strips an optional trailing
// Roman-numeral cycle suffix and looks the base name up in the stage table.
// Unknown names resolve to 0.
func ResolveID(name string) int {
	name = strings.TrimSpace(name)
	cycle := 1
	if m := cycleSuffixRe.FindStringSubmatch(name); m != nil {
		if c, ok := fromRoman(m[2]); ok {
			name = strings.TrimSpace(m[1])
			cycle = c
		}
	}
	for i, stage := range raidStages {
		if stage == name {
			return (cycle-1)*StageCount + i + 1
		}
	}
	return 0
}

// CompletedRaids derives the completed-raid count from the highest raid id
// seen, capped to [0, StageCount].
func CompletedRaids(maxID int) int {
	n := maxID - 1
	if n < 0 {
		return 0
	}
	if n > StageCount {
		return StageCount
	}
	return n
}

var romanValues = []struct {
	value int
	sym   string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func toRoman(n int) string {
	var b strings.Builder
	for _, rv := range romanValues {
		for n >= rv.value {
			b.WriteString(rv.sym)
			n -= rv.value
		}
	}
	return b.String()
}

func fromRoman(s string) (int, bool) {
	n := 0
	rest := s
	for _, rv := range romanValues {
		for strings.HasPrefix(rest, rv.sym) {
			n += rv.value
			rest = rest[len(rv.sym):]
		}
	}
	if rest != "" || n == 0 {
		return 0, false
	}
	return n, true
}
