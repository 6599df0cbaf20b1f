// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"

	"github.com/seqlabs/rollup/cmd/conf"
	"github.com/seqlabs/rollup/cmd/genericconf"
	"github.com/seqlabs/rollup/cmd/util"
	"github.com/seqlabs/rollup/ledger"
	"github.com/seqlabs/rollup/rollupstate"
	"github.com/seqlabs/rollup/seqnode"
)

func main() {
	if err := startup(); err != nil {
		log.Error("Error running sequencer node", "err", err)
		os.Exit(1)
	}
}

func printSampleUsage() {
	progname := os.Args[0]
	fmt.Printf("\n")
	fmt.Printf("Sample usage:                  %s --help \n", progname)
}

func startup() error {
	nodeConfig, err := ParseSeqNode(context.Background(), os.Args[1:])
	if err != nil {
		printSampleUsage()
		if !strings.Contains(err.Error(), "help requested") {
			fmt.Printf("%s\n", err.Error())
		}
		return nil
	}

	err = genericconf.InitLog(log.Lvl(nodeConfig.LogLevel), &nodeConfig.FileLogging)
	if err != nil {
		return err
	}

	var db ethdb.Database
	if nodeConfig.Persistent.Chain == "" {
		log.Warn("no persistent chain directory configured, state will not survive restarts")
		db = rawdb.NewMemoryDatabase()
	} else {
		db, err = rawdb.NewLevelDBDatabase(nodeConfig.Persistent.Chain, 0, nodeConfig.Persistent.Handles, "seqnode/", false)
		if err != nil {
			return err
		}
	}
	defer db.Close()

	ledgerClient := ledger.NewRPCClient(&nodeConfig.Ledger)
	if err := ledgerClient.Connect(context.Background()); err != nil {
		return err
	}
	defer ledgerClient.Close()

	submitterAddr := common.HexToAddress(nodeConfig.Node.SubmitterAddress)
	node, err := seqnode.CreateNode(db, &nodeConfig.Node.Sequencer, ledgerClient, submitterAddr, rollupstate.PlaceholderStateRoot)
	if err != nil {
		return err
	}

	defer log.Info("Cleanly shutting down sequencer node")

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	if err := node.Start(context.Background()); err != nil {
		return err
	}
	<-sigint
	node.StopAndWait()
	return nil
}

type SeqNodeConfig struct {
	Conf        conf.ConfConfig               `koanf:"conf"`
	LogLevel    int                           `koanf:"log-level"`
	FileLogging genericconf.FileLoggingConfig `koanf:"file-logging"`
	Persistent  conf.PersistentConfig         `koanf:"persistent"`
	Ledger      ledger.ClientConfig           `koanf:"ledger"`
	Node        NodeConfig                    `koanf:"node"`
}

var SeqNodeConfigDefault = SeqNodeConfig{
	Conf:        conf.ConfConfigDefault,
	LogLevel:    int(log.LvlInfo),
	FileLogging: genericconf.DefaultFileLoggingConfig,
	Persistent:  conf.PersistentConfigDefault,
	Ledger:      ledger.DefaultClientConfig,
	Node:        NodeConfigDefault,
}

func SeqNodeConfigAddOptions(f *flag.FlagSet) {
	conf.ConfConfigAddOptions("conf", f)
	f.Int("log-level", SeqNodeConfigDefault.LogLevel, "log level")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	conf.PersistentConfigAddOptions("persistent", f)
	ledger.ClientConfigAddOptions("ledger", f)
	NodeConfigAddOptions("node", f)
}

type NodeConfig struct {
	SubmitterAddress string         `koanf:"submitter-address"`
	Sequencer        seqnode.Config `koanf:"sequencer"`
}

var NodeConfigDefault = NodeConfig{
	SubmitterAddress: "",
	Sequencer:        seqnode.DefaultConfig,
}

func NodeConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".submitter-address", NodeConfigDefault.SubmitterAddress, "address batches are submitted under")
	seqnode.ConfigAddOptions(prefix+".sequencer", f)
}

func ParseSeqNode(_ context.Context, args []string) (*SeqNodeConfig, error) {
	f := flag.NewFlagSet("", flag.ContinueOnError)

	SeqNodeConfigAddOptions(f)

	k, err := util.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}

	var nodeConfig SeqNodeConfig
	if err := util.EndCommonParse(k, &nodeConfig); err != nil {
		return nil, err
	}

	if nodeConfig.Conf.Dump {
		c, err := util.DumpConfig(k)
		if err != nil {
			return nil, err
		}
		fmt.Println(c)
		os.Exit(0)
	}

	return &nodeConfig, nil
}
