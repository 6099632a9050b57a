package repository

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/okian/callgen/internal/domain/model"
)

// Input is one JSONL source for Merge and the label its records receive.
type Input struct {
	Path  string
	Label model.Kind
}

// Merge reads all inputs, relabels their records (is_fraud follows the label),
// shuffles them with rnd and writes them to out. The returned stats describe
// the merged set.
func Merge(ctx context.Context, out io.Writer, rnd *rand.Rand, inputs ...Input) (Stats, error) {
	var records []model.Record
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		recs, err := ReadFile(in.Path)
		if err != nil {
			return Stats{}, fmt.Errorf("read %s: %w", in.Path, err)
		}
		for i := range recs {
			if in.Label != "" {
				recs[i].Label = in.Label
			}
			recs[i].IsFraud = recs[i].Label.FraudFlag()
		}
		records = append(records, recs...)
	}

	rnd.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })

	w := bufio.NewWriter(out)
	for i := range records {
		line, err := marshal(records[i], "")
		if err != nil {
			return Stats{}, fmt.Errorf("marshal %s: %w", records[i].ID, err)
		}
		if _, err := w.Write(line); err != nil {
			return Stats{}, err
		}
	}
	if err := w.Flush(); err != nil {
		return Stats{}, err
	}
	return Summarize(records), nil
}
