// Copyright 2022-2023, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package conf

import (
	flag "github.com/spf13/pflag"
)

type ConfConfig struct {
	Dump      bool   `koanf:"dump"`
	EnvPrefix string `koanf:"env-prefix"`
	File      string `koanf:"file"`
	String    string `koanf:"string"`
}

func ConfConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".dump", ConfConfigDefault.Dump, "print out currently active configuration file")
	f.String(prefix+".env-prefix", ConfConfigDefault.EnvPrefix, "environment variables with given prefix will be loaded as configuration values")
	f.String(prefix+".file", ConfConfigDefault.File, "name of configuration file")
	f.String(prefix+".string", ConfConfigDefault.String, "configuration as JSON string")
}

var ConfConfigDefault = ConfConfig{
	Dump:      false,
	EnvPrefix: "",
	File:      "",
	String:    "",
}

type PersistentConfig struct {
	Chain   string `koanf:"chain"`
	Handles int    `koanf:"handles"`
}

var PersistentConfigDefault = PersistentConfig{
	Chain:   "",
	Handles: 512,
}

func PersistentConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".chain", PersistentConfigDefault.Chain, "directory to store sequencer state")
	f.Int(prefix+".handles", PersistentConfigDefault.Handles, "number of file descriptor handles to use for the database")
}
