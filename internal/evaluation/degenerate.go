package evaluation

import "github.com/flybeeper/trajflow/internal/models"

// DefaultMaxDistinctLabels порог фрагментации разметки
const DefaultMaxDistinctLabels = 100

// IsDegenerate сообщает, что разметку не имеет смысла оценивать: одна метка,
// один кластер плюс шум или больше maxDistinct меток.
func IsDegenerate(labels []int, maxDistinct int) bool {
	distinct := make(map[int]struct{})
	for _, l := range labels {
		distinct[l] = struct{}{}
	}

	_, hasNoise := distinct[models.NoiseLabel]
	switch n := len(distinct); {
	case n <= 1:
		return true
	case n == 2 && hasNoise:
		return true
	case n > maxDistinct:
		return true
	}
	return false
}
