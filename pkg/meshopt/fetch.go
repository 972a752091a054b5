package meshopt

// OptimizeVertexFetchRemap returns a remap table that orders vertices by
// their first use in the index buffer: remap[i] is the new slot of old vertex
// i. Vertices the index buffer never references are placed after all
// referenced ones, in their original order, so the table is always a
// permutation of [0, vertexCount).
func OptimizeVertexFetchRemap(indices []uint32, vertexCount int) ([]uint32, error) {
	if err := checkIndices(indices, vertexCount); err != nil {
		return nil, err
	}

	remap := make([]uint32, vertexCount)
	for i := range remap {
		remap[i] = unused
	}

	var next uint32
	for _, v := range indices {
		if remap[v] == unused {
			remap[v] = next
			next++
		}
	}
	for i, r := range remap {
		if r == unused {
			remap[i] = next
			next++
		}
	}
	return remap, nil
}

// RemapIndexBuffer rewrites every index through remap. dst may alias indices.
func RemapIndexBuffer(dst, indices, remap []uint32) {
	for i, v := range indices {
		dst[i] = remap[v]
	}
}

// RemapVertexBuffer moves src[i] to dst[remap[i]]. dst may alias src.
func RemapVertexBuffer[T any](dst, src []T, remap []uint32) {
	tmp := append([]T(nil), src...)
	for i, r := range remap {
		if r != unused {
			dst[r] = tmp[i]
		}
	}
}
