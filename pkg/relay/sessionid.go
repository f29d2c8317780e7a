package relay

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// IDStyle selects how session ids are minted.
type IDStyle string

const (
	// IDStyleUUID mints random UUIDv4 ids.
	IDStyleUUID IDStyle = "uuid"
	// IDStyleWords mints readable adjective-noun-verb-adjective-noun ids
	// such as "brave-otter-chases-quiet-river".
	IDStyleWords IDStyle = "words"
)

// ParseIDStyle validates a style name. Empty selects IDStyleUUID.
func ParseIDStyle(name string) (IDStyle, error) {
	switch IDStyle(name) {
	case "", IDStyleUUID:
		return IDStyleUUID, nil
	case IDStyleWords:
		return IDStyleWords, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidIDStyle, name)
	}
}

// Generator returns the id function for the style
func (s IDStyle) Generator() func() string {
	if s == IDStyleWords {
		return NewWordID
	}
	return NewUUID
}

// NewUUID returns a random UUIDv4 string
func NewUUID() string {
	return uuid.New().String()
}

var (
	adjectives = []string{
		"amber", "bold", "brave", "bright", "calm", "clever", "cosmic", "crisp",
		"dusty", "eager", "fancy", "fierce", "gentle", "golden", "grumpy", "happy",
		"hidden", "humble", "jolly", "lively", "lucky", "mellow", "misty", "noble",
		"odd", "patient", "polite", "proud", "quick", "quiet", "rapid", "rusty",
		"shiny", "silent", "sleepy", "smooth", "sunny", "swift", "tidy", "wild",
	}
	nouns = []string{
		"air", "badger", "bridge", "canyon", "castle", "clouds", "comet", "falcon",
		"fire", "forest", "garden", "harbor", "island", "lantern", "meadow", "mountains",
		"otter", "owl", "panda", "pebble", "penguin", "planet", "rabbit", "river",
		"robot", "rocks", "sticks", "storm", "tiger", "trees", "tulip", "valley",
		"walrus", "water", "whale", "willow", "wizard", "wolf", "yak", "zebra",
	}
	verbs = []string{
		"builds", "carries", "chases", "climbs", "dances", "eat", "finds", "fly",
		"follows", "greets", "guards", "hugs", "jumps", "juggles", "meets", "paints",
		"plants", "pushes", "reads", "rides", "sees", "sings", "smash", "sniffs",
		"swim", "tickles", "visits", "wakes", "watches", "writes",
	}

	// nonsense lists the objects a verb may not take.
	nonsense = map[string][]string{
		"eat":   {"sticks", "rocks", "trees"},
		"smash": {"clouds", "air", "water"},
		"fly":   {"rocks", "trees", "mountains"},
		"swim":  {"fire", "air", "rocks"},
	}
)

// NewWordID returns a readable id of the form adjective-noun-verb-adjective-noun.
// The two adjectives differ, the two nouns differ and the verb never takes a
// nonsensical object.
func NewWordID() string {
	for {
		adj1, noun1, verb, adj2, noun2 := pick(adjectives), pick(nouns), pick(verbs), pick(adjectives), pick(nouns)
		if validWords(adj1, noun1, verb, adj2, noun2) {
			return strings.Join([]string{adj1, noun1, verb, adj2, noun2}, "-")
		}
	}
}

// IsWordID reports whether id has the shape NewWordID produces.
func IsWordID(id string) bool {
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		return false
	}
	return slices.Contains(adjectives, parts[0]) &&
		slices.Contains(nouns, parts[1]) &&
		slices.Contains(verbs, parts[2]) &&
		slices.Contains(adjectives, parts[3]) &&
		slices.Contains(nouns, parts[4])
}

func validWords(adj1, noun1, verb, adj2, noun2 string) bool {
	if adj1 == adj2 || noun1 == noun2 {
		return false
	}
	return !slices.Contains(nonsense[verb], noun2)
}

func pick(words []string) string {
	return words[rand.IntN(len(words))]
}
