package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	auction "auction-engine/internal/auctionService"
	"auction-engine/internal/scheduler"
)

type Args struct {
	ServerURL   string
	RuleConfig  auction.Config
	SweepConfig scheduler.Config
}

func ParseArgs() Args {
	ruleDefaults := auction.DefaultConfig()
	sweepDefaults := scheduler.DefaultConfig()

	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")

	// bidding rules
	pflag.Float64("minimum-bid-increment", ruleDefaults.MinimumBidIncrement, "")
	pflag.Duration("retraction-window", ruleDefaults.RetractionWindow, "")
	pflag.Duration("lock-wait-timeout", ruleDefaults.LockWaitTimeout, "")

	// lifecycle sweeps
	pflag.Duration("expiry-sweep-interval", sweepDefaults.ExpirySweepInterval, "")
	pflag.Duration("extension-sweep-interval", sweepDefaults.ExtensionSweepInterval, "")
	pflag.Duration("extension-lookahead", sweepDefaults.ExtensionLookahead, "")
	pflag.Duration("extension-increment", sweepDefaults.ExtensionIncrement, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("AUCTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		RuleConfig: auction.Config{
			MinimumBidIncrement: viper.GetFloat64("minimum-bid-increment"),
			RetractionWindow:    viper.GetDuration("retraction-window"),
			ExtensionLookahead:  viper.GetDuration("extension-lookahead"),
			ExtensionIncrement:  viper.GetDuration("extension-increment"),
			LockWaitTimeout:     viper.GetDuration("lock-wait-timeout"),
		},
		SweepConfig: scheduler.Config{
			ExpirySweepInterval:    viper.GetDuration("expiry-sweep-interval"),
			ExtensionSweepInterval: viper.GetDuration("extension-sweep-interval"),
			ExtensionLookahead:     viper.GetDuration("extension-lookahead"),
			ExtensionIncrement:     viper.GetDuration("extension-increment"),
			LockWaitTimeout:        viper.GetDuration("lock-wait-timeout"),
		},
	}
}
