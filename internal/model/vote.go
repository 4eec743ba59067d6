package model

// VoteDirection 当前用户对某个实体的投票方向（三态，闭合枚举）
type VoteDirection int8

const (
	Downvote VoteDirection = -1
	NoVote   VoteDirection = 0
	Upvote   VoteDirection = 1
)

// Valid 只接受 -1/0/1，其他值一律视为脏数据
func (d VoteDirection) Valid() bool {
	return d == Downvote || d == NoVote || d == Upvote
}

// ClampDirection 把补偿运算可能越界的结果收回三态区间
func ClampDirection(v int8) VoteDirection {
	if v < -1 {
		return Downvote
	}
	if v > 1 {
		return Upvote
	}
	return VoteDirection(v)
}
