package process

// TreeFinder lists the direct children of a process.
type TreeFinder interface {
	ChildrenOf(pid int) ([]int, error)
}

type TreeFinderFunc func(pid int) ([]int, error)

func (f TreeFinderFunc) ChildrenOf(pid int) ([]int, error) {
	return f(pid)
}

// Descendants walks the process tree below root and returns every transitive
// child, deepest first, so that children always precede their parents. The
// root itself is not included. Lookup failures prune that branch.
func Descendants(finder TreeFinder, root int) []int {
	if finder == nil || root <= 0 {
		return nil
	}
	visited := map[int]struct{}{root: {}}
	var out []int
	var walk func(pid int)
	walk = func(pid int) {
		children, err := finder.ChildrenOf(pid)
		if err != nil {
			return
		}
		for _, child := range children {
			if child <= 0 {
				continue
			}
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			walk(child)
			out = append(out, child)
		}
	}
	walk(root)
	return out
}

// Tree returns the descendants of root followed by root.
func Tree(finder TreeFinder, root int) []int {
	if root <= 0 {
		return nil
	}
	return append(Descendants(finder, root), root)
}
