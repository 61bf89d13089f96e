package main

import "context"

func main() {
	// 初始化控制台
	InitFlag()
	// 开始安全退出任务
	InitSafeExit()
	// 初始化配置
	InitConf(configPath)
	// 初始化日志
	InitLog()
	// 初始化存储
	InitStore()

	switch runMode {
	case "import":
		if err := RunImport(context.Background()); err != nil {
			log.Fatalf("import error: %v", err)
		}
	case "tiles":
		// 瓦片模式才需要断点续传
		InitBreakPoint()
		if err := RunPyramid(); err != nil {
			log.Fatalf("pyramid error: %v", err)
		}
	case "serve":
		InitServer()
	default:
		log.Fatalf("unknown mode %q (expect import|tiles|serve)", runMode)
	}
}
