package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf         bool
	configPath string
	logLevel   string
	runMode    string
	worldName  string
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&runMode, "m", "serve", "run mode: import | tiles | serve")
	flag.StringVar(&worldName, "w", "", "world name (overrides map.name in config)")
	// 覆盖默认的 Usage，输出模式说明
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `worldtiler version: worldtiler/v0.1.0
Usage: worldtiler [-h] [-c filename] [-l logLevel] [-m mode] [-w world]

Modes:
  import  导入 <world>_{cells,burgs,routes,rivers,markers}.geojson 到空间库
  tiles   渲染世界地图瓦片金字塔
  serve   启动瓦片与空间查询服务
`)
	flag.PrintDefaults()
}
