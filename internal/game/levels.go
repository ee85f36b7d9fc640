package game

// MaxLevels is the total number of levels; reaching it ends the campaign.
const MaxLevels = 16

// levelNames maps level numbers to their level file. Tutorial levels are
// hardcoded into the client rather than loaded from a file, so their slot
// is empty.
var levelNames = [MaxLevels]string{
	"",
	"json/tutorial2.owslevel",
	"",
	"json/tutorial4.owslevel",
	"json/level1.owslevel",
	"json/level2.owslevel",
	"",
	"json/tutorial6.owslevel",
	"json/tutorial7.owslevel",
	"json/level3.owslevel",
	"",
	"json/level4.owslevel",
	"json/level5.owslevel",
	"json/level6.owslevel",
	"json/level7.owslevel",
	"json/level8.owslevel",
}

// IsTutorial reports whether the given level is a tutorial.
func IsTutorial(level uint8) bool {
	return int(level) < MaxLevels && levelNames[level] == ""
}

// LevelName returns the level file for the given level, or "" for tutorials
// and out-of-range levels.
func LevelName(level uint8) string {
	if int(level) >= MaxLevels {
		return ""
	}
	return levelNames[level]
}
