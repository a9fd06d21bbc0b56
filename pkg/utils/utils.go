package utils

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/holdno/snowFlakeByGo"
)

var (
	// IdWorker 全局唯一id生成器实例
	idWorker     *snowFlakeByGo.Worker
	idWorkerOnce sync.Once
)

func SetupIDWorker(clusterID int64) {
	idWorkerOnce.Do(func() {})
	idWorker, _ = snowFlakeByGo.NewWorker(clusterID)
}

func GenUniqID() int64 {
	// 未显式初始化时（测试、命令行工具）使用 1 号节点
	idWorkerOnce.Do(func() {
		if idWorker == nil {
			idWorker, _ = snowFlakeByGo.NewWorker(1)
		}
	})
	return idWorker.GetId()
}

func GenUniqIDStr() string {
	return strconv.FormatInt(GenUniqID(), 10)
}

// RandomStr 随机字符串
func RandomStr(l int) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	seed := "1234567890qwertyuiopasdfghjklzxcvbnmQWERTYUIOPASDFGHJKLZXCVBNM"
	str := ""
	length := len(seed)
	for i := 0; i < l; i++ {
		point := r.Intn(length)
		str = str + seed[point:point+1]
	}
	return str
}

// Random 生成随机数
func Random(min, max int) int {
	if min == max {
		return max
	}
	max = max + 1
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return min + r.Intn(max-min)
}

// WordCount 按空白切分计数
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// TruncateRunes 按字符截断，用于落库的错误信息
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
