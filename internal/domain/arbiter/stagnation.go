package arbiter

import (
	"strings"
	"unicode"

	"github.com/okian/callgen/internal/domain/model"
)

const (
	defaultStagnationWindow     = 4
	defaultStagnationSimilarity = 0.8
)

// StagnationDetector flags a conversation whose recent turns repeat what the
// same speaker said one exchange earlier.
type StagnationDetector struct {
	// Window is how many trailing turns must be repetitive. Values below 3
	// leave no same-speaker pair to compare and disable detection.
	Window int
	// Similarity is the minimum token-set Jaccard index for a repeat.
	Similarity float64
}

// Stagnant reports whether every turn in the trailing window is similar to the
// turn two positions before it.
func (d StagnationDetector) Stagnant(tr model.Transcript) bool {
	turns := tr.Turns()
	if d.Window < 3 || len(turns) < d.Window {
		return false
	}
	tail := turns[len(turns)-d.Window:]
	for i := 2; i < len(tail); i++ {
		if Similarity(tail[i].Content, tail[i-2].Content) < d.Similarity {
			return false
		}
	}
	return true
}

// Similarity is the Jaccard index of the word sets of a and b.
func Similarity(a, b string) float64 {
	sa, sb := words(a), words(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for w := range sa {
		if sb[w] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func words(s string) map[string]bool {
	s = strings.ToLower(model.StripSignals(s))
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = true
	}
	return out
}
