package humanize

import (
	"math/rand"
	"time"
	"unicode"
)

// keyboardNeighbors maps characters to their adjacent keys on a QWERTY
// layout, used to pick believable wrong keystrokes.
var keyboardNeighbors = map[rune]string{
	'1': "2q`", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9-op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol;0-",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiol,m", 'l': "kop;.",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk,",
}

// keyEventKind distinguishes the events of a typing plan.
type keyEventKind int

const (
	keyText keyEventKind = iota
	keyBackspace
)

// keyEvent is one dispatched keystroke with the pause preceding it.
type keyEvent struct {
	kind  keyEventKind
	text  string
	delay time.Duration
}

const (
	wordBoundarySlowdown = 1.4
	postSpacePauseChance = 0.07
	typoMinTextLen       = 5
)

// typingPlan expands text into the keystroke sequence a person would
// produce: Gaussian inter-key delays from the configured speed range,
// slower keys at word boundaries, an occasional post-space thinking pause,
// and at most one neighbor-key typo that is held briefly, backspaced, and
// corrected. Replaying the plan always yields exactly `text` in the field.
func typingPlan(rng *rand.Rand, cfg Config, text string) []keyEvent {
	cfg = cfg.normalized()
	runes := []rune(text)

	// TypoChance is a per-character probability, so longer texts slip
	// more often. First hit wins; one corrected typo per call at most.
	// Never the first character; mid-word slips read as more natural.
	typoAt := -1
	if len(runes) >= typoMinTextLen {
		for i := 1; i < len(runes); i++ {
			if rng.Float64() < cfg.TypoChance {
				typoAt = i
				break
			}
		}
	}

	minMs := float64(cfg.TypingSpeedMin)
	maxMs := float64(cfg.TypingSpeedMax)

	plan := make([]keyEvent, 0, len(runes)+3)
	for i, r := range runes {
		delay := delayBetween(rng, minMs, maxMs)
		if isWordBoundary(r) {
			delay = time.Duration(float64(delay) * wordBoundarySlowdown)
		}
		if i > 0 && runes[i-1] == ' ' && rng.Float64() < postSpacePauseChance {
			// Thinking pause before starting the next word.
			delay += delayBetween(rng, 200, 500)
		}

		if i == typoAt {
			if wrong, ok := neighborKey(rng, r); ok {
				plan = append(plan, keyEvent{kind: keyText, text: string(wrong), delay: delay})
				// The slip sits on screen until noticed, then gets erased.
				plan = append(plan, keyEvent{kind: keyBackspace, delay: delayBetween(rng, 100, 350)})
				plan = append(plan, keyEvent{kind: keyText, text: string(r), delay: delayBetween(rng, minMs, maxMs)})
				continue
			}
		}

		plan = append(plan, keyEvent{kind: keyText, text: string(r), delay: delay})
	}
	return plan
}

// neighborKey picks a QWERTY-adjacent key for r, preserving case.
func neighborKey(rng *rand.Rand, r rune) (rune, bool) {
	neighbors, ok := keyboardNeighbors[unicode.ToLower(r)]
	if !ok || len(neighbors) == 0 {
		return 0, false
	}
	wrong := rune(neighbors[rng.Intn(len(neighbors))])
	if unicode.IsUpper(r) {
		wrong = unicode.ToUpper(wrong)
	}
	return wrong, true
}

func isWordBoundary(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

// planText reconstructs the field content a plan produces, for tests and
// sanity checks.
func planText(plan []keyEvent) string {
	var out []rune
	for _, ev := range plan {
		switch ev.kind {
		case keyText:
			out = append(out, []rune(ev.text)...)
		case keyBackspace:
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		}
	}
	return string(out)
}
