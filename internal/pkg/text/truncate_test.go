package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "比特...", Truncate("比特币价格", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, `SELECT "DATE" FROM t WHERE x = ?`, OneLine("SELECT \"DATE\"\n  FROM t\n\tWHERE x = ?\n"))
}
