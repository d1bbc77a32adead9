package fwf

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny batches from being split across goroutines.
const minChunk = 256

// DecodeAll decodes lines concurrently and returns rows in input order.
// Lines are split into contiguous chunks, one goroutine per chunk, at most
// workers at a time. workers <= 0 means GOMAXPROCS. Decoding has no
// cross-line state, so the result does not depend on how lines are split.
func DecodeAll(ctx context.Context, dec *Decoder, lines []RawLine, workers int) ([]Row, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rows := make([]Row, len(lines))

	chunk := (len(lines) + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(lines); lo += chunk {
		hi := lo + chunk
		if hi > len(lines) {
			hi = len(lines)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%minChunk == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				rows[i] = dec.DecodeLine(lines[i].Number, lines[i].Text)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
