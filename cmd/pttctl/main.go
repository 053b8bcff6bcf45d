// pttctl 命令行入口：一次性抓取列表、文章、预览、热门、画廊或 RSS 并输出 JSON/YAML，适合手动排查
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
