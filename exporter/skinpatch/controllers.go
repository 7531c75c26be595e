package skinpatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mogaika/scene_exporter/scene"
)

func formatWeight(w float32) string {
	return strconv.FormatFloat(float64(w), 'g', -1, 32)
}

func controllerPrefix(index int) string {
	return fmt.Sprintf("mesh-%d", index)
}

// ControllerLines renders <library_controllers> for every mesh that has bones.
// Returns nil if no mesh is skinned.
func ControllerLines(meshes []*scene.Mesh, names []string) []string {
	var lines []string
	for i, mesh := range meshes {
		if mesh == nil || !mesh.HasBones() {
			continue
		}
		name := controllerPrefix(i)
		if i < len(names) {
			name = names[i]
		}
		lines = append(lines, controllerLines(i, name, mesh)...)
	}
	if lines == nil {
		return nil
	}
	return append(append([]string{"  <library_controllers>"}, lines...), "  </library_controllers>")
}

func controllerLines(index int, name string, mesh *scene.Mesh) []string {
	prefix := controllerPrefix(index)
	wt := NewWeightTable(mesh)
	w := &lineWriter{}

	w.f(`   <controller id="%s-skin" name="%sSkin">`, prefix, escape(name))
	w.f(`    <skin source="#%s">`, GeometryId(index))

	w.f(`     <bind_shape_matrix>`)
	w.f(`      1 0 0 0`)
	w.f(`      0 1 0 0`)
	w.f(`      0 0 1 0`)
	w.f(`      0 0 0 1`)
	w.f(`     </bind_shape_matrix>`)

	jointNames := make([]string, len(mesh.Bones))
	for i, bone := range mesh.Bones {
		jointNames[i] = escape(bone.Name)
	}
	w.f(`     <source id="%s-skin-joints">`, prefix)
	w.f(`      <Name_array id="%s-skin-joints-array" count="%d">%s</Name_array>`, prefix, len(mesh.Bones), strings.Join(jointNames, " "))
	w.accessor(prefix+"-skin-joints-array", len(mesh.Bones), 1, `<param name="JOINT" type="name"></param>`)
	w.f(`     </source>`)

	w.f(`     <source id="%s-skin-bind_poses">`, prefix)
	w.f(`      <float_array id="%s-skin-bind_poses-array" count="%d">`, prefix, len(mesh.Bones)*16)
	for _, bone := range mesh.Bones {
		// collada matrices are row major, mgl32 storage is column major
		t := bone.Offset.Transpose()
		for row := 0; row < 4; row++ {
			w.f(`       %.2f %.2f %.2f %.2f`, t[row*4], t[row*4+1], t[row*4+2], t[row*4+3])
		}
	}
	w.f(`      </float_array>`)
	w.accessor(prefix+"-skin-bind_poses-array", len(mesh.Bones), 16, `<param name="TRANSFORM" type="float4x4"></param>`)
	w.f(`     </source>`)

	weights := make([]string, len(wt.All))
	for i, weight := range wt.All {
		weights[i] = formatWeight(weight)
	}
	w.f(`     <source id="%s-skin-weights">`, prefix)
	w.f(`      <float_array id="%s-skin-weights-array" count="%d">%s</float_array>`, prefix, len(wt.All), strings.Join(weights, " "))
	w.accessor(prefix+"-skin-weights-array", len(wt.All), 1, `<param name="WEIGHT" type="float"></param>`)
	w.f(`     </source>`)

	w.f(`     <joints>`)
	w.f(`      <input semantic="JOINT" source="#%s-skin-joints"></input>`, prefix)
	w.f(`      <input semantic="INV_BIND_MATRIX" source="#%s-skin-bind_poses"></input>`, prefix)
	w.f(`     </joints>`)

	vertices := len(mesh.Vertices)
	vcount := make([]string, vertices)
	v := make([]string, 0)
	for iVertex := 0; iVertex < vertices; iVertex++ {
		rw := wt.Vertex(iVertex)
		vcount[iVertex] = strconv.Itoa(rw.Count())
		for j := range rw.Weights {
			v = append(v, strconv.Itoa(rw.BoneIndices[j]), strconv.Itoa(wt.Index[rw.Weights[j]]))
		}
	}
	w.f(`     <vertex_weights count="%d">`, vertices)
	w.f(`      <input semantic="JOINT" source="#%s-skin-joints" offset="0"></input>`, prefix)
	w.f(`      <input semantic="WEIGHT" source="#%s-skin-weights" offset="1"></input>`, prefix)
	w.f(`      <vcount>%s</vcount>`, strings.Join(vcount, " "))
	w.f(`      <v>%s</v>`, strings.Join(v, " "))
	w.f(`     </vertex_weights>`)

	w.f(`    </skin>`)
	w.f(`   </controller>`)
	return w.lines
}

type lineWriter struct {
	lines []string
}

func (w *lineWriter) f(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *lineWriter) accessor(source string, count, stride int, param string) {
	w.f(`      <technique_common>`)
	w.f(`       <accessor source="#%s" count="%d" stride="%d">`, source, count, stride)
	w.f(`        %s`, param)
	w.f(`       </accessor>`)
	w.f(`      </technique_common>`)
}
