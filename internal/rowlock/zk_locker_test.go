package rowlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortBySequenceOrdersByNodeSequence(t *testing.T) {
	// 受保护节点名的 GUID 前缀与创建顺序无关，
	// 字典序下 0b... 会排在 ff... 前面，必须按末尾序号排
	children := []string{
		"_c_ff00000000000000000000000000000f-lock-0000000002",
		"_c_0b0000000000000000000000000000aa-lock-0000000010",
		"_c_9c00000000000000000000000000000c-lock-0000000001",
	}

	sortBySequence(children)

	assert.Equal(t, []string{
		"_c_9c00000000000000000000000000000c-lock-0000000001",
		"_c_ff00000000000000000000000000000f-lock-0000000002",
		"_c_0b0000000000000000000000000000aa-lock-0000000010",
	}, children)
}

func TestSortBySequenceMixedNames(t *testing.T) {
	// 序号能解析的节点排前面，解析不了的垫底
	children := []string{
		"garbage",
		"lock-0000000003",
		"_c_aa000000000000000000000000000001-lock-0000000002",
	}

	sortBySequence(children)

	assert.Equal(t, "_c_aa000000000000000000000000000001-lock-0000000002", children[0])
	assert.Equal(t, "lock-0000000003", children[1])
	assert.Equal(t, "garbage", children[2])
}

func TestSequenceOf(t *testing.T) {
	assert.Equal(t, int64(7), sequenceOf("_c_ab-lock-0000000007"))
	assert.Equal(t, int64(3), sequenceOf("lock-0000000003"))
	// 没有序号的名字返回最大值，排序时垫底
	assert.Equal(t, int64(^uint64(0)>>1), sequenceOf("garbage"))
	assert.Equal(t, int64(^uint64(0)>>1), sequenceOf("trailing-"))
}
