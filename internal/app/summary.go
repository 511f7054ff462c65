package app

import (
	"fmt"
	"strings"
	"time"
)

type StartupSummary struct {
	Env       string
	HTTPAddr  string
	Driver    string
	Catalog   string
	Metrics   []string
	Cache     string
	WarmEvery time.Duration
	StorePath string
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[服务 (SERVICE)]")
	fmt.Printf("  环境: %s\n", orDash(s.Env))
	fmt.Printf("  监听: %s\n", orDash(s.HTTPAddr))
	fmt.Println()

	fmt.Println("[数据仓库 (WAREHOUSE)]")
	fmt.Printf("  驱动: %s\n", orDash(s.Driver))
	fmt.Printf("  缓存: %s\n", orDash(s.Cache))
	if s.WarmEvery > 0 {
		fmt.Printf("  预热间隔: %s\n", s.WarmEvery)
	} else {
		fmt.Println("  预热间隔: (关闭)")
	}
	fmt.Println()

	fmt.Println("[指标目录 (CATALOG)]")
	fmt.Printf("  来源: %s\n", orDash(s.Catalog))
	fmt.Printf("  指标: %s\n", formatList(s.Metrics))
	fmt.Println()

	fmt.Println("[本地存储 (STORE)]")
	fmt.Printf("  路径: %s\n", orDash(s.StorePath))
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
