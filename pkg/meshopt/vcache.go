package meshopt

import "math"

// Forsyth scoring parameters.
const (
	vcacheSize        = 32
	vcacheDecayPower  = 1.5
	vcacheLastTri     = 0.75
	valenceBoostScale = 2.0
	valenceBoostPower = 0.5
)

func vertexScore(cachePos int, live uint32) float32 {
	if live == 0 {
		return -1
	}

	var score float32
	if cachePos >= 0 {
		if cachePos < 3 {
			score = vcacheLastTri
		} else {
			scaler := 1.0 / float64(vcacheSize-3)
			score = float32(math.Pow(1-float64(cachePos-3)*scaler, vcacheDecayPower))
		}
	}
	score += float32(valenceBoostScale * math.Pow(float64(live), -valenceBoostPower))
	return score
}

// OptimizeVertexCache reorders triangles to improve post-transform cache
// reuse. dst must hold len(indices) elements and may alias indices.
// Indices must be smaller than vertexCount.
func OptimizeVertexCache(dst, indices []uint32, vertexCount int) error {
	if err := checkIndices(indices, vertexCount); err != nil {
		return err
	}
	faceCount := len(indices) / 3
	if faceCount == 0 {
		return nil
	}

	src := append([]uint32(nil), indices[:faceCount*3]...)
	adj := buildAdjacency(src, vertexCount)

	cachePos := make([]int, vertexCount)
	scores := make([]float32, vertexCount)
	for v := range cachePos {
		cachePos[v] = -1
		scores[v] = vertexScore(-1, adj.live[v])
	}

	triScores := make([]float32, faceCount)
	for t := 0; t < faceCount; t++ {
		triScores[t] = scores[src[t*3]] + scores[src[t*3+1]] + scores[src[t*3+2]]
	}

	emitted := make([]bool, faceCount)
	cache := make([]uint32, 0, vcacheSize+3)
	next := make([]uint32, 0, vcacheSize+3)

	best := 0
	for t := 1; t < faceCount; t++ {
		if triScores[t] > triScores[best] {
			best = t
		}
	}

	cursor := 0
	for out := 0; out < faceCount; out++ {
		if best < 0 {
			// Dead end: continue from the next unemitted triangle in input order.
			for emitted[cursor] {
				cursor++
			}
			best = cursor
		}

		tri := src[best*3 : best*3+3]
		copy(dst[out*3:out*3+3], tri)
		emitted[best] = true
		adj.consume(uint32(best), tri)

		next = next[:0]
		for _, v := range tri {
			if !contains(next, v) {
				next = append(next, v)
			}
		}
		for _, v := range cache {
			if !contains(next, v) {
				next = append(next, v)
			}
		}
		for i, v := range next {
			if i < vcacheSize {
				cachePos[v] = i
			} else {
				cachePos[v] = -1
			}
		}
		for _, v := range next {
			scores[v] = vertexScore(cachePos[v], adj.live[v])
		}

		best = -1
		var bestScore float32
		for _, v := range next {
			for _, t := range adj.triangles(v) {
				s := scores[src[t*3]] + scores[src[t*3+1]] + scores[src[t*3+2]]
				triScores[t] = s
				if best < 0 || s > bestScore {
					best = int(t)
					bestScore = s
				}
			}
		}

		if len(next) > vcacheSize {
			next = next[:vcacheSize]
		}
		cache, next = next, cache
	}
	return nil
}

func contains(list []uint32, v uint32) bool {
	for _, u := range list {
		if u == v {
			return true
		}
	}
	return false
}
