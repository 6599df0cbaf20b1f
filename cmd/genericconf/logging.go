// Copyright 2022-2023, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package genericconf

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileLoggingConfig struct {
	Enable     bool   `koanf:"enable"`
	File       string `koanf:"file"`
	MaxSize    int    `koanf:"max-size"`
	MaxBackups int    `koanf:"max-backups"`
	MaxAge     int    `koanf:"max-age"`
	Compress   bool   `koanf:"compress"`
}

var DefaultFileLoggingConfig = FileLoggingConfig{
	Enable:     false,
	File:       "seqnode.log",
	MaxSize:    5,
	MaxBackups: 20,
	MaxAge:     0,
	Compress:   true,
}

func FileLoggingConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultFileLoggingConfig.Enable, "enable logging to file")
	f.String(prefix+".file", DefaultFileLoggingConfig.File, "path to log file")
	f.Int(prefix+".max-size", DefaultFileLoggingConfig.MaxSize, "log file size in Mb that will trigger rotation")
	f.Int(prefix+".max-backups", DefaultFileLoggingConfig.MaxBackups, "maximum number of old log files to retain")
	f.Int(prefix+".max-age", DefaultFileLoggingConfig.MaxAge, "maximum number of days to retain old log files")
	f.Bool(prefix+".compress", DefaultFileLoggingConfig.Compress, "enable compression of old log files")
}

// InitLog installs the root log handler, writing to stderr and, if
// enabled, a rotated log file.
func InitLog(logLevel log.Lvl, config *FileLoggingConfig) error {
	var writer io.Writer = os.Stderr
	if config.Enable {
		writer = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	glogger := log.NewGlogHandler(log.StreamHandler(writer, log.TerminalFormat(false)))
	glogger.Verbosity(logLevel)
	log.Root().SetHandler(glogger)
	return nil
}
