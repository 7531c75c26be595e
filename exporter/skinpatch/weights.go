package skinpatch

import (
	"github.com/mogaika/scene_exporter/scene"
)

type RiggedWeight struct {
	Weights     []float32
	BoneIndices []int
}

func (rw *RiggedWeight) Add(weight float32, bone int) {
	rw.Weights = append(rw.Weights, weight)
	rw.BoneIndices = append(rw.BoneIndices, bone)
}

func (rw *RiggedWeight) Count() int { return len(rw.Weights) }

// WeightTable regroups bone major weights per vertex. All keeps every weight
// in bone then weight order, Index maps a weight value to its first position
// in All.
type WeightTable struct {
	Vertices map[int]*RiggedWeight
	All      []float32
	Index    map[float32]int
}

func NewWeightTable(mesh *scene.Mesh) *WeightTable {
	wt := &WeightTable{
		Vertices: make(map[int]*RiggedWeight),
		All:      make([]float32, 0),
		Index:    make(map[float32]int),
	}
	for iBone, bone := range mesh.Bones {
		for _, vw := range bone.Weights {
			if _, ok := wt.Index[vw.Weight]; !ok {
				wt.Index[vw.Weight] = len(wt.All)
			}
			wt.All = append(wt.All, vw.Weight)

			rw, ok := wt.Vertices[vw.Vertex]
			if !ok {
				rw = &RiggedWeight{}
				wt.Vertices[vw.Vertex] = rw
			}
			rw.Add(vw.Weight, iBone)
		}
	}
	return wt
}

// Vertex returns influences of vertex i, empty for unweighted vertices.
func (wt *WeightTable) Vertex(i int) *RiggedWeight {
	if rw, ok := wt.Vertices[i]; ok {
		return rw
	}
	return &RiggedWeight{}
}
