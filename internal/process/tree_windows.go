//go:build windows

package process

// DefaultTreeFinder returns a finder that reports no children; signals on
// Windows always target the root process only.
func DefaultTreeFinder() TreeFinder {
	return TreeFinderFunc(func(int) ([]int, error) { return nil, nil })
}
