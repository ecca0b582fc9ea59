package adherence

import "github.com/roach88/dosewatch/internal/medication"

// Summary counts responses for one medicine name.
type Summary struct {
	Medicine string  `json:"medicine"`
	Taken    int     `json:"taken"`
	Missed   int     `json:"missed"`
	Rate     float64 `json:"rate"`
}

// Summarize groups entries by medicine name in order of first appearance.
// Rate is Taken / (Taken + Missed).
func Summarize(entries []medication.LogEntry) []Summary {
	index := make(map[string]int)
	out := make([]Summary, 0)

	for _, e := range entries {
		i, ok := index[e.Medicine]
		if !ok {
			i = len(out)
			index[e.Medicine] = i
			out = append(out, Summary{Medicine: e.Medicine})
		}
		if e.Taken {
			out[i].Taken++
		} else {
			out[i].Missed++
		}
	}

	for i := range out {
		out[i].Rate = float64(out[i].Taken) / float64(out[i].Taken+out[i].Missed)
	}
	return out
}
