package presence

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"tools.zach/dev/tekkencord/internal/game"
)

// ///////////////////////////////////////////////
// Table
// ///////////////////////////////////////////////

// Placeholders substituted into the format strings of a [Table].
const (
	PlaceholderP1 = "{p1}"
	PlaceholderP2 = "{p2}"
)

// Entry is the baseline presence for one game mode.
type Entry struct {
	Details    string
	State      string
	LargeImage string
}

// Table holds everything the mapper needs to turn a game state into
// presence text. Build one from a preset and adjust it, then call
// [Table.Validate] before handing it to [NewMapper].
type Table struct {
	// Modes holds the baseline entry for every known mode.
	Modes map[game.Mode]Entry
	// Default is used for modes missing from Modes, including ModeUnknown.
	Default Entry
	// Characters maps a character name, as written by the mod, to an asset key.
	Characters map[string]string
	// GenericAsset is the small image shown when a character has no asset.
	GenericAsset string
	// LargeText is the hover text of the large image.
	LargeText string
	// SmallText is the hover text of the small image when no character is shown.
	SmallText string
	// Versus is the details line when both characters are known.
	Versus string
	// PlayingAs is the details line when only the first character is known.
	PlayingAs string
	// TrainingWith replaces the state line in practice mode.
	TrainingWith string
}

// Validate reports every problem with t. A table is complete when each
// mode returned by [game.AllModes] has an entry with an image.
func (t Table) Validate() error {
	var errs []error
	for _, m := range game.AllModes() {
		e, ok := t.Modes[m]
		if !ok {
			errs = append(errs, fmt.Errorf("mode %q has no entry", m))
			continue
		}
		if e.LargeImage == "" {
			errs = append(errs, fmt.Errorf("mode %q has no large image", m))
		}
	}
	if t.Default.LargeImage == "" {
		errs = append(errs, errors.New("default entry has no large image"))
	}
	if t.GenericAsset == "" {
		errs = append(errs, errors.New("generic asset is empty"))
	}
	if !strings.Contains(t.Versus, PlaceholderP1) || !strings.Contains(t.Versus, PlaceholderP2) {
		errs = append(errs, fmt.Errorf("versus format %q must contain %s and %s", t.Versus, PlaceholderP1, PlaceholderP2))
	}
	if !strings.Contains(t.PlayingAs, PlaceholderP1) {
		errs = append(errs, fmt.Errorf("playing-as format %q must contain %s", t.PlayingAs, PlaceholderP1))
	}
	for name, asset := range t.Characters {
		if asset == "" {
			errs = append(errs, fmt.Errorf("character %q has an empty asset", name))
		}
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of t, so presets can be adjusted freely.
func (t Table) Clone() Table {
	t.Modes = maps.Clone(t.Modes)
	t.Characters = maps.Clone(t.Characters)
	return t
}

// ///////////////////////////////////////////////
// Presets
// ///////////////////////////////////////////////

// Locale names accepted by [Preset].
const (
	LocaleEnglish = "en"
	LocaleKorean  = "ko"
)

// Preset returns the built-in table for locale.
func Preset(locale string) (Table, error) {
	switch strings.ToLower(locale) {
	case "", LocaleEnglish:
		return EnglishTable(), nil
	case LocaleKorean:
		return KoreanTable(), nil
	default:
		return Table{}, fmt.Errorf("unknown locale %q (valid: %s, %s)", locale, LocaleEnglish, LocaleKorean)
	}
}

// EnglishTable returns the default English table.
func EnglishTable() Table {
	modes := map[game.Mode]Entry{
		game.ModeMainMenu:        {"TEKKEN 8", "Main Menu", "tekken8_logo"},
		game.ModeCharacterSelect: {"TEKKEN 8", "Selecting Character", "character_select"},
		game.ModeStageSelect:     {"TEKKEN 8", "Selecting Stage", "stage_select"},
		game.ModeSideSelect:      {"TEKKEN 8", "Selecting Side", "tekken8_logo"},
		game.ModeSessionRoom:     {"Player Match", "In Session Room", "player_match"},
		game.ModeLoading:         {"TEKKEN 8", "Loading...", "loading"},
		game.ModePractice:        {"Practice Mode", "Training", "practice_mode"},
		game.ModeBattle:          {"Fighting", "In Battle", "battle"},
		game.ModeResult:          {"TEKKEN 8", "Match Results", "results"},
		game.ModeStartup:         {"TEKKEN 8", "Starting Game", "tekken8_logo"},
		game.ModeGameClosed:      {"TEKKEN 8", "Game Closed", "tekken8_logo"},
		game.ModeMenu:            {"TEKKEN 8", "In Menus", "tekken8_logo"},
	}
	return Table{
		Modes:        modes,
		Default:      modes[game.ModeMenu],
		Characters:   characterAssets(),
		GenericAsset: "tekken8_logo",
		LargeText:    "Tekken 8",
		SmallText:    "Tekken 8",
		Versus:       "{p1} VS {p2}",
		PlayingAs:    "Playing as {p1}",
		TrainingWith: "Training with {p1}",
	}
}

// KoreanTable returns the Korean table. Image keys match [EnglishTable].
func KoreanTable() Table {
	modes := map[game.Mode]Entry{
		game.ModeMainMenu:        {"철권 8", "메인 메뉴", "tekken8_logo"},
		game.ModeCharacterSelect: {"철권 8", "캐릭터 선택중...", "character_select"},
		game.ModeStageSelect:     {"철권 8", "스테이지 선택중...", "stage_select"},
		game.ModeSideSelect:      {"철권 8", "플레이 사이드 선택중...", "tekken8_logo"},
		game.ModeSessionRoom:     {"철권 8", "플레이어 매치 대기중...", "player_match"},
		game.ModeLoading:         {"철권 8", "로딩중...", "loading"},
		game.ModePractice:        {"철권 8", "연습 모드", "practice_mode"},
		game.ModeBattle:          {"철권 8", "배틀중...", "battle"},
		game.ModeResult:          {"철권 8", "매치 결과", "results"},
		game.ModeStartup:         {"철권 8", "게임 시작중...", "tekken8_logo"},
		game.ModeGameClosed:      {"철권 8", "게임 꺼짐", "tekken8_logo"},
		game.ModeMenu:            {"철권 8", "메뉴", "tekken8_logo"},
	}
	return Table{
		Modes:        modes,
		Default:      modes[game.ModeMenu],
		Characters:   characterAssets(),
		GenericAsset: "tekken8_logo",
		LargeText:    "Tekken 8",
		SmallText:    "Tekken 8",
		Versus:       "{p1} VS {p2}",
		PlayingAs:    "{p1} 플레이 중...",
		TrainingWith: "{p1} 연습하는 중...",
	}
}

// characterAssets returns the uploaded asset key for each playable character.
func characterAssets() map[string]string {
	return map[string]string{
		"Jin":        "jin",
		"Kazuya":     "kazuya",
		"Jun":        "jun",
		"Paul":       "paul",
		"King":       "king",
		"Lars":       "lars",
		"Nina":       "nina",
		"Jack-8":     "jack8",
		"Law":        "law",
		"Raven":      "raven",
		"Dragunov":   "dragunov",
		"Leo":        "leo",
		"Steve":      "steve",
		"Yoshimitsu": "yoshimitsu",
		"Hwoarang":   "hwoarang",
		"Bryan":      "bryan",
		"Claudio":    "claudio",
		"Azucena":    "azucena",
		"Lili":       "lili",
		"Asuka":      "asuka",
		"Feng":       "feng",
		"Leroy":      "leroy",
		"Alisa":      "alisa",
		"Xiaoyu":     "xiaoyu",
		"Zafina":     "zafina",
		"Victor":     "victor",
		"Reina":      "reina",
		"Kuma":       "kuma",
		"Panda":      "panda",
		"Shaheen":    "shaheen",
		"Lee":        "lee",
		"Devil Jin":  "devil_jin",
		"Eddy":       "eddy",
		"Lidia":      "lidia",
		"Heihachi":   "heihachi",
		"Clive":      "clive",
		"Anna":       "anna",
		"Fahkumram":  "fahkumram",
		"Armor King": "armorking",
	}
}
