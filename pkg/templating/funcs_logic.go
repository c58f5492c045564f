package templating

import "reflect"

// repeat returns a slice of integers from 0 to count-1.
func repeat(count int) []int {
	if count < 0 {
		return []int{}
	}
	s := make([]int, count)
	for i := 0; i < count; i++ {
		s[i] = i
	}
	return s
}

// list returns a slice containing all the arguments passed to it.
func list(args ...any) []any {
	return args
}

// randomChoice selects and returns a single random element from a slice.
func (tm *TemplateManager) randomChoice(slice any) any {
	if slice == nil {
		return nil
	}

	val := reflect.ValueOf(slice)
	if val.Kind() != reflect.Slice || val.Len() == 0 {
		return nil
	}
	return val.Index(tm.random.IntN(val.Len())).Interface()
}

// randomInt returns a random integer within the range [lo, hi).
func (tm *TemplateManager) randomInt(lo, hi int) int {
	if lo >= hi {
		return lo
	}
	return tm.random.IntN(hi-lo) + lo
}

// isSet returns true if a value is not its zero value.
func isSet(val any) bool {
	v := reflect.ValueOf(val)
	return v.IsValid() && !v.IsZero()
}

// Arithmetic helpers. Division and modulo by zero yield zero instead of
// aborting the render.

func add(a, b int) int  { return a + b }
func sub(a, b int) int  { return a - b }
func mult(a, b int) int { return a * b }
func inc(i int) int     { return i + 1 }
func dec(i int) int     { return i - 1 }

func div(a, b int) int {
	if b == 0 {
		return 0
	}
	return a / b
}

func mod(a, b int) int {
	if b == 0 {
		return 0
	}
	return a % b
}

func maxInt(a, b int) int { return max(a, b) }
func minInt(a, b int) int { return min(a, b) }
