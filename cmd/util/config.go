// Copyright 2022-2023, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package util

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

// BeginCommonParse parses command line flags and layers any requested
// config file, JSON string, and environment variables underneath them.
// Precedence, highest first: flags, env, config string, config file.
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, errors.Errorf("unexpected arguments: %v", f.Args())
	}

	k := koanf.New(".")

	configFile, err := f.GetString("conf.file")
	if err == nil && configFile != "" {
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return nil, errors.Wrap(err, "error loading config file")
		}
	}
	configString, err := f.GetString("conf.string")
	if err == nil && configString != "" {
		if err := k.Load(rawbytes.Provider([]byte(configString)), json.Parser()); err != nil {
			return nil, errors.Wrap(err, "error loading config string")
		}
	}
	envPrefix, err := f.GetString("conf.env-prefix")
	if err == nil && envPrefix != "" {
		err = k.Load(env.Provider(envPrefix+"_", ".", func(s string) string {
			// FOO_SUBMITTER__BATCH_SIZE -> submitter.batch-size
			lowered := strings.ToLower(strings.TrimPrefix(s, envPrefix+"_"))
			return strings.ReplaceAll(strings.ReplaceAll(lowered, "__", "."), "_", "-")
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, "error loading environment")
		}
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, errors.Wrap(err, "error loading flags")
	}
	return k, nil
}

func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,

		// Default values
		WeaklyTypedInput: true,
		Result:           config,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(mapstructure.StringToTimeDurationHookFunc()),
	}
	err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{DecoderConfig: &decoderConfig})
	if err != nil {
		return errors.Wrap(err, "error parsing configuration")
	}
	return nil
}

// DumpConfig marshals the active configuration as JSON for --conf.dump.
func DumpConfig(k *koanf.Koanf) (string, error) {
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return "", errors.Wrap(err, "unable to marshal config to JSON")
	}
	return string(c), nil
}
