package common

func ContainsInt64Slice(slice []int64, search int64) bool {
	for _, v := range slice {
		if v == search {
			return true
		}
	}

	return false
}

// ReverseSlice reverses s in place
func ReverseSlice[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// CutStringShort shortens s to at most l runes
func CutStringShort(s string, l int) string {
	runes := []rune(s)
	if len(runes) <= l {
		return s
	}

	if l <= 3 {
		return string(runes[:l])
	}

	return string(runes[:l-3]) + "..."
}
