package warehouse

import (
	"fmt"
	"strings"
)

// Dialect 负责标识符引用、日期转换和占位符。
// 标识符只来自目录，且已通过 catalog.ValidIdent 校验。
type Dialect struct {
	Name string
}

var (
	Snowflake = Dialect{Name: "snowflake"}
	Postgres  = Dialect{Name: "postgres"}
	SQLite    = Dialect{Name: "sqlite"}
)

// DialectFor 根据驱动名返回方言。
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "snowflake":
		return Snowflake, nil
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Table 引用表名。sqlite 镜像把带点的全名当成单个表名。
func (d Dialect) Table(name string) string {
	if d.Name == SQLite.Name {
		return quote(name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(d.fold(p))
	}
	return strings.Join(parts, ".")
}

// Column 引用列名（例如 INDEX 这类保留字也能安全使用）。
func (d Dialect) Column(name string) string {
	return quote(d.fold(name))
}

func (d Dialect) fold(s string) string {
	switch d.Name {
	case Snowflake.Name:
		return strings.ToUpper(s)
	case Postgres.Name:
		return strings.ToLower(s)
	default:
		return s
	}
}

// Date 把表达式截断到日期。
func (d Dialect) Date(expr string) string {
	if d.Name == SQLite.Name {
		return "DATE(" + expr + ")"
	}
	return "CAST(" + expr + " AS DATE)"
}

// Placeholder 返回第 n 个（从 1 开始）绑定参数的占位符。
func (d Dialect) Placeholder(n int) string {
	if d.Name == Postgres.Name {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
