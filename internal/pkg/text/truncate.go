package text

import "strings"

// Truncate 按 rune 截断，超出时追加 "..."。
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// OneLine 把多行 SQL 压成单行，便于日志输出。
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
