package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `toml:"version"`
		Title   string `toml:"title"`
	} `toml:"app"`
	Output struct {
		Directory      string `toml:"directory"`
		LogDir         string `toml:"logDir"`
		OutputTerminal bool   `toml:"outputTerminal"`
	} `toml:"output"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Task struct {
		Workers int `toml:"workers"`
		BufSize int `toml:"bufSize"`
	} `toml:"task"`
	BreakPoint struct {
		SaveFilePath string `toml:"saveFilePath"`
	} `toml:"breakPoint"`
	Map struct {
		Name     string `toml:"name"`
		Dir      string `toml:"dir"`
		SVG      string `toml:"svg"`
		Min      int    `toml:"min"`
		Max      int    `toml:"max"`
		TileSize int    `toml:"tileSize"`
	} `toml:"map"`
	Server struct {
		Addr     string `toml:"addr"`
		CacheDir string `toml:"cacheDir"`
	} `toml:"server"`
}

// InitConf 初始化配置
func InitConf(cfgFile string) {
	if cfgFile == "" {
		cfgFile = "conf.toml"
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("config file(%s) not exist", cfgFile)
		os.Exit(1)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		fmt.Printf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	// 设置默认值
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "World Tiler")
	viper.SetDefault("output.directory", "output")
	viper.SetDefault("output.outputTerminal", true)
	viper.SetDefault("store.path", "data/world.sqlite")
	viper.SetDefault("task.workers", runtime.NumCPU())
	viper.SetDefault("task.bufSize", 64)
	viper.SetDefault("breakPoint.saveFilePath", "breakpoint")
	viper.SetDefault("map.dir", ".")
	viper.SetDefault("map.min", 0)
	viper.SetDefault("map.max", 6)
	viper.SetDefault("map.tileSize", TileSize)
	viper.SetDefault("server.addr", ":8090")
	viper.SetDefault("server.cacheDir", "data/burgtiles")

	err = viper.Unmarshal(&conf)
	if err != nil {
		panic("配置文件解析失败")
	}
	if worldName != "" {
		conf.Map.Name = worldName
	}
}
