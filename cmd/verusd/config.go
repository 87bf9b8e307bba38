// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "verusd.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 10
	defaultLogSize        = 10 * 1024 // KB
)

// config defines the configuration options for verusd.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile       string  `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir          string  `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir           string  `long:"logdir" description:"Directory to log output"`
	DebugLevel       string  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	AddrIndex        bool    `long:"addrindex" description:"Maintain a full address-based transaction index for the unconfirmed pool"`
	SpentIndex       bool    `long:"spentindex" description:"Maintain an index of outpoints spent by unconfirmed transactions"`
	MempoolCheckFreq float64 `long:"mempoolcheckfrequency" description:"Probability in [0,1] that the mempool runs its consistency audit after a mutation"`
	ShowVersion      bool    `short:"V" long:"version" description:"Display version information and exit"`
}

// defaultHomeDir returns the base directory verusd stores its data under.
func defaultHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".verusd")
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// loadConfig initializes and parses the config using command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	homeDir := defaultHomeDir()
	cfg := config{
		ConfigFile: filepath.Join(homeDir, defaultConfigFilename),
		DataDir:    filepath.Join(homeDir, defaultDataDirname),
		LogDir:     filepath.Join(homeDir, defaultLogDirname),
		DebugLevel: defaultLogLevel,
	}

	// Pre-parse the command line options to see if an alternative config
	// file was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		appName = strings.TrimSuffix(appName, filepath.Ext(appName))
		fmt.Printf("%s version %s\n", appName, version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if !validLogLevel(cfg.DebugLevel) {
		str := "the specified debug level [%v] is invalid"
		err := fmt.Errorf(str, cfg.DebugLevel)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.MempoolCheckFreq < 0 || cfg.MempoolCheckFreq > 1 {
		str := "mempoolcheckfrequency must be in [0, 1], got %v"
		err := fmt.Errorf(str, cfg.MempoolCheckFreq)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
