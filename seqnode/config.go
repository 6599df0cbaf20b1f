// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	Submitter       BatchSubmitterConfig `koanf:"submitter"`
	SignerCacheSize int                  `koanf:"signer-cache-size"`
	MempoolCapacity int                  `koanf:"mempool-capacity"`
	ChallengePeriod time.Duration        `koanf:"challenge-period"`
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	BatchSubmitterConfigAddOptions(prefix+".submitter", f)
	f.Int(prefix+".signer-cache-size", DefaultConfig.SignerCacheSize, "size of the recovered signer cache")
	f.Int(prefix+".mempool-capacity", DefaultConfig.MempoolCapacity, "maximum pending transactions held before admission is refused")
	f.Duration(prefix+".challenge-period", DefaultConfig.ChallengePeriod, "advisory challenge window length, must match the ledger's")
}

var DefaultConfig = Config{
	Submitter:       DefaultBatchSubmitterConfig,
	SignerCacheSize: 1024,
	MempoolCapacity: 4096,
	ChallengePeriod: time.Hour * 24 * 7,
}

var TestConfig = Config{
	Submitter:       TestBatchSubmitterConfig,
	SignerCacheSize: 16,
	MempoolCapacity: 128,
	ChallengePeriod: time.Second,
}
