package storage

import "fmt"

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Options 选择并配置持久化后端
type Options struct {
	Driver      string
	DataDir     string
	PostgresDSN string
	RedisAddr   string
}

// Open 按 Driver 打开对应的 Store；Driver 为空时使用文件存储
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileStore(opts.DataDir)
	case DriverPostgres:
		return NewDBStore(opts.PostgresDSN, opts.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
