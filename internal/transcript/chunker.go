package transcript

import "time"

const (
	maxChunkTurns = 60
	holdTimeGap   = 10 * time.Minute
)

// Chunk is a segment of a very long call suitable for one oracle pass.
type Chunk struct {
	Turns     []Turn
	StartTime time.Time
	EndTime   time.Time
}

// ChunkTurns splits a call into segments on hold gaps and turn-count
// boundaries. Most calls fit one chunk; long multi-hold calls are fed to
// the oracle piecewise with the last chunk's extraction winning field
// conflicts.
func ChunkTurns(turns []Turn) []Chunk {
	if len(turns) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []Turn

	for _, turn := range turns {
		if len(current) > 0 && !turn.Timestamp.IsZero() {
			prev := current[len(current)-1]
			if !prev.Timestamp.IsZero() && turn.Timestamp.Sub(prev.Timestamp) > holdTimeGap {
				chunks = append(chunks, buildChunk(current))
				current = nil
			}
		}
		if len(current) >= maxChunkTurns {
			chunks = append(chunks, buildChunk(current))
			current = nil
		}
		current = append(current, turn)
	}

	if len(current) > 0 {
		chunks = append(chunks, buildChunk(current))
	}
	return chunks
}

func buildChunk(turns []Turn) Chunk {
	c := Chunk{Turns: make([]Turn, len(turns))}
	copy(c.Turns, turns)
	if !turns[0].Timestamp.IsZero() {
		c.StartTime = turns[0].Timestamp
	}
	if last := turns[len(turns)-1]; !last.Timestamp.IsZero() {
		c.EndTime = last.Timestamp
	}
	return c
}
