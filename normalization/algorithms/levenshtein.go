package algorithms

// LevenshteinDistance вычисляет классическое расстояние Левенштейна по рунам.
// Вставка, удаление и замена стоят по единице.
func LevenshteinDistance(str1, str2 string) int {
	r1 := []rune(str1)
	r2 := []rune(str2)

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// WithinDistance сообщает, не превышает ли расстояние Левенштейна maxDistance.
// Вычисление прерывается, как только весь текущий ряд матрицы превысил порог.
func WithinDistance(str1, str2 string, maxDistance int) bool {
	if maxDistance < 0 {
		return false
	}
	if str1 == str2 {
		return true
	}

	r1 := []rune(str1)
	r2 := []rune(str2)

	diff := len(r1) - len(r2)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDistance {
		return false
	}
	if len(r1) == 0 || len(r2) == 0 {
		return max(len(r1), len(r2)) <= maxDistance
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, curr[j])
		}
		if rowMin > maxDistance {
			return false
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)] <= maxDistance
}
