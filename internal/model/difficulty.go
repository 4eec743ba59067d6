package model

// DifficultyTier 任务难度档位，1 最易 5 最难。
// 由完成率反向推导：完成的人越少，难度越高。
type DifficultyTier int8

const (
	TierSurface  DifficultyTier = 1
	TierTwilight DifficultyTier = 2
	TierMidnight DifficultyTier = 3
	TierAbyssal  DifficultyTier = 4
	TierHadal    DifficultyTier = 5
)

func (t DifficultyTier) Label() string {
	switch t {
	case TierSurface:
		return "surface"
	case TierTwilight:
		return "twilight"
	case TierMidnight:
		return "midnight"
	case TierAbyssal:
		return "abyssal"
	case TierHadal:
		return "hadal"
	}
	return "hadal"
}

// ClassifyDifficulty 把完成率（0-100 百分比）映射到难度档位。
// 每档下界闭区间，恰好踩线归入更容易的一档；入参越界不报错，夹取处理。
func ClassifyDifficulty(completionRate float64) DifficultyTier {
	switch {
	case completionRate >= 80:
		return TierSurface
	case completionRate >= 60:
		return TierTwilight
	case completionRate >= 40:
		return TierMidnight
	case completionRate >= 20:
		return TierAbyssal
	default:
		return TierHadal
	}
}
