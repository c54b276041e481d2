package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.sirus.dev/p2p-comm/duochat/pkg/chat"
	"go.sirus.dev/p2p-comm/duochat/pkg/connector"
	"go.sirus.dev/p2p-comm/duochat/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:   "duochat",
	Short: "two-party chat service over a document store",
	Run: func(cmd *cobra.Command, args []string) {
		// initiate config
		var err error
		conf, err := LoadConfig()
		if err != nil {
			log.Fatalf("Error loading configurations %v", err)
		}

		// setup logger
		logger, err := connector.CreateLogger(conf.LogLevel)
		if err != nil {
			log.Fatalf("Error setup logger %v", err)
		}
		logger.Info("logger setup finish")

		// connect to mongo
		db, err := connector.ConnectToMongo(conf.Mongo)
		if err != nil {
			logger.Fatalf("failed to open mongo -> %v", err)
		}
		logger.Info("mongo connected")

		// connect to nats
		logger.Debug("connect to nats")
		nc, err := nats.Connect(conf.NatsURL)
		if err != nil {
			logger.Fatalf("failed to connect to nats", err)
		}
		logger.Debug("encode nats connecting")
		natsConn, err := nats.NewEncodedConn(nc, nats.JSON_ENCODER)
		if err != nil {
			logger.Fatalf("failed to encode nats connection", err)
		}
		logger.Info("nats connected")

		// instantiate chat API
		chatAPI := chat.NewAPI(db, logger)

		// bridge chat events to nats
		logger.Infof("publishing chat events on namespace %s", conf.EventNamespace)
		svc := server.NewEventService(chatAPI, logger, natsConn, conf.EventNamespace)
		svc.Run()
	},
}

func init() {
	rootCmd.Version = Version
}

// Execute root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
