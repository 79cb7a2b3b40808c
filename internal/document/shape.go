package document

import (
	"sort"
	"strconv"
)

// KeyPaths lists the dotted path of every scalar leaf and every empty
// container in v. Sequence elements contribute their index as a path
// segment, so two documents share a shape only when their arrays have
// matching lengths as well.
func KeyPaths(v Value) []string {
	var paths []string
	collectPaths(v, "", &paths)
	return paths
}

func collectPaths(v Value, prefix string, paths *[]string) {
	switch t := v.(type) {
	case *Mapping:
		if t.Len() == 0 && prefix != "" {
			*paths = append(*paths, prefix)
			return
		}
		for _, k := range t.keys {
			collectPaths(t.values[k], joinPath(prefix, k), paths)
		}
	case *Sequence:
		if t.Len() == 0 && prefix != "" {
			*paths = append(*paths, prefix)
			return
		}
		for i, item := range t.Items {
			collectPaths(item, joinPath(prefix, strconv.Itoa(i)), paths)
		}
	default:
		if prefix != "" {
			*paths = append(*paths, prefix)
		}
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// CompareShapes reports the key paths present in base but absent from
// other (missing) and those present in other only (extra). Both lists are
// sorted.
func CompareShapes(base, other Value) (missing, extra []string) {
	basePaths := toSet(KeyPaths(base))
	otherPaths := toSet(KeyPaths(other))

	for p := range basePaths {
		if _, ok := otherPaths[p]; !ok {
			missing = append(missing, p)
		}
	}
	for p := range otherPaths {
		if _, ok := basePaths[p]; !ok {
			extra = append(extra, p)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
