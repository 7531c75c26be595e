package skinpatch

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

var (
	reElementId   = regexp.MustCompile(`\bid="([^"]*)"`)
	reInstanceUrl = regexp.MustCompile(`(<instance_geometry[^>]*\burl=")#([^"]*)(")`)
)

// State is carried between lines of one document.
type State struct {
	// number of <geometry lines seen so far
	Geometry int
	// geometry id written by the encoder -> patched id
	Ids map[string]string
	// library_controllers already emitted
	ControllersDone bool
}

func NewState() State {
	return State{Ids: make(map[string]string)}
}

func GeometryId(index int) string {
	return fmt.Sprintf("meshId%d", index)
}

func escape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Transducer rewrites one line at a time. It never looks ahead, so the
// output for a line depends only on the line and the state before it.
type Transducer struct {
	Names               []string
	RewriteInstanceRefs bool
	// Controllers is emitted once, right before <library_visual_scenes>
	Controllers func() []string
}

func (t *Transducer) Step(line string, st State) ([]string, State) {
	switch {
	case strings.Contains(line, "<geometry"):
		index := st.Geometry
		st.Geometry++
		if index >= len(t.Names) {
			return []string{line}, st
		}
		newId := GeometryId(index)
		if m := reElementId.FindStringSubmatch(line); m != nil {
			if st.Ids == nil {
				st.Ids = make(map[string]string)
			}
			st.Ids[m[1]] = newId
		}
		return []string{fmt.Sprintf(`    <geometry id="%s" name="%s" > `, newId, escape(t.Names[index]))}, st

	case t.RewriteInstanceRefs && strings.Contains(line, "<instance_geometry"):
		return []string{reInstanceUrl.ReplaceAllStringFunc(line, func(s string) string {
			m := reInstanceUrl.FindStringSubmatch(s)
			if newId, ok := st.Ids[m[2]]; ok {
				return m[1] + "#" + newId + m[3]
			}
			return s
		})}, st

	case t.Controllers != nil && !st.ControllersDone && strings.Contains(line, "<library_visual_scenes"):
		st.ControllersDone = true
		return append(t.Controllers(), line), st
	}
	return []string{line}, st
}
