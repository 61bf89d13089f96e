package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/maptile"
)

var BreakPointInst *BreakPoint

// InitBreakPoint 初始化断点续渲: 重启后跳过已落盘的瓦片
// 断点文件按世界名区分, 重建金字塔前手动删除即可全量重渲
func InitBreakPoint() {
	dir := conf.BreakPoint.SaveFilePath
	os.MkdirAll(dir, os.ModePerm)
	fp := filepath.Join(dir, fmt.Sprintf("%s.log", conf.Map.Name))
	file, err := os.OpenFile(fp, os.O_APPEND|os.O_CREATE|os.O_RDWR, os.ModePerm)
	if err != nil {
		fmt.Println(err)
		panic("break point file open is error")
	}

	// 获取断点记录
	successMap := readBreakPoints(file)

	saveChan := make(chan maptile.Tile, conf.Task.Workers)
	BreakPointInst = &BreakPoint{
		file:       file,
		saveChan:   saveChan,
		successMap: successMap,
	}

	SafeExitInst.Register(BreakPointInst.BreakPointSafeFun)

	// 开始断点任务
	go BreakPointInst.Start()
}

// 读取已完成瓦片记录
func readBreakPoints(file *os.File) map[string]struct{} {
	res := make(map[string]struct{})

	br := bufio.NewReader(file)
	for {
		line, isPrefix, err := br.ReadLine()
		if isPrefix {
			continue
		}
		if err == io.EOF {
			break
		}
		res[string(line)] = struct{}{}
	}
	return res
}

type BreakPoint struct {
	file       *os.File
	saveChan   chan maptile.Tile
	successMap map[string]struct{}
	isClose    bool
}

func (b *BreakPoint) IsSuccessed(tile maptile.Tile) bool {
	key := fmt.Sprintf("%d-%d-%d", tile.X, tile.Y, tile.Z)
	_, ok := b.successMap[key]
	return ok
}

func (b *BreakPoint) SetSuccessed(tile maptile.Tile) {
	if b.isClose {
		return
	}
	b.saveChan <- tile
}

func (b *BreakPoint) Start() {
	log.Infof("断点记录任务已开始")
	for tile := range b.saveChan {
		key := fmt.Sprintf("%d-%d-%d\n", tile.X, tile.Y, tile.Z)
		b.file.WriteString(key)
	}
}

func (b *BreakPoint) BreakPointSafeFun() {
	b.isClose = true
	b.file.Close()
	log.Infof("断点记录任务已安全退出")
}
